package testkit

import (
	"context"
	"sort"
	"sync"

	"sheetflow/domain/core"
	"sheetflow/ports"
)

// StaticSource implements ports.SheetSource over grids held in memory.
// Grids can be replaced between calls to simulate edits made in the sheet.
type StaticSource struct {
	mu     sync.RWMutex
	names  map[string]string
	tabs   map[string][]string
	values map[string]map[string][][]string
	err    error
}

// NewStaticSource creates an empty source
func NewStaticSource() *StaticSource {
	return &StaticSource{
		names:  make(map[string]string),
		tabs:   make(map[string][]string),
		values: make(map[string]map[string][][]string),
	}
}

// SetTab stores a grid under spreadsheetID/tab, creating the spreadsheet if needed
func (s *StaticSource) SetTab(spreadsheetID, tab string, grid [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[spreadsheetID]; !ok {
		s.values[spreadsheetID] = make(map[string][][]string)
		s.names[spreadsheetID] = spreadsheetID
	}
	if _, ok := s.values[spreadsheetID][tab]; !ok {
		s.tabs[spreadsheetID] = append(s.tabs[spreadsheetID], tab)
	}
	s.values[spreadsheetID][tab] = cloneGrid(grid)
}

// Fail makes every later call return err until it is cleared with nil
func (s *StaticSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *StaticSource) ListSpreadsheets(ctx context.Context) ([]ports.Spreadsheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]ports.Spreadsheet, 0, len(s.names))
	for id, name := range s.names {
		out = append(out, ports.Spreadsheet{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *StaticSource) ListTabs(ctx context.Context, spreadsheetID string) ([]ports.Tab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	names, ok := s.tabs[spreadsheetID]
	if !ok {
		return nil, core.NewNotFoundError(core.ErrWorkbookNotFound, spreadsheetID)
	}
	out := make([]ports.Tab, len(names))
	for i, name := range names {
		out[i] = ports.Tab{ID: i, Name: name}
	}
	return out, nil
}

func (s *StaticSource) GetValues(ctx context.Context, spreadsheetID, tabName string) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	tabs, ok := s.values[spreadsheetID]
	if !ok {
		return nil, core.NewNotFoundError(core.ErrWorkbookNotFound, spreadsheetID)
	}
	grid, ok := tabs[tabName]
	if !ok {
		return nil, core.NewNotFoundError(core.ErrTabNotFound, spreadsheetID+"/"+tabName)
	}
	return cloneGrid(grid), nil
}

func cloneGrid(grid [][]string) [][]string {
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return out
}
