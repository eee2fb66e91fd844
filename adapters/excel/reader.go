// Package excel serves local .xlsx and .csv files as a sheet source.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sheetflow/domain/core"
	"sheetflow/ports"
)

// csvTabName is the single tab a CSV file exposes
const csvTabName = "Sheet1"

// WorkbookSource implements ports.SheetSource over a directory of workbooks.
// The file name is the spreadsheet id.
type WorkbookSource struct {
	dir string
}

// NewWorkbookSource creates a source reading from dir
func NewWorkbookSource(dir string) *WorkbookSource {
	return &WorkbookSource{dir: dir}
}

// ListSpreadsheets lists the .xlsx and .csv files in the directory, newest first
func (s *WorkbookSource) ListSpreadsheets(ctx context.Context) ([]ports.Spreadsheet, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workbooks in %s: %w", s.dir, err)
	}

	var out []ports.Spreadsheet
	for _, entry := range entries {
		if entry.IsDir() || !supported(entry.Name()) || strings.HasPrefix(entry.Name(), "~$") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, ports.Spreadsheet{
			ID:           entry.Name(),
			Name:         strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			ModifiedTime: info.ModTime().UTC(),
			WebViewLink:  "file://" + filepath.Join(s.dir, entry.Name()),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ModifiedTime.After(out[j].ModifiedTime)
	})
	return out, nil
}

// ListTabs lists the sheets of a workbook in order
func (s *WorkbookSource) ListTabs(ctx context.Context, spreadsheetID string) ([]ports.Tab, error) {
	path, err := s.path(spreadsheetID)
	if err != nil {
		return nil, err
	}
	if isCSV(path) {
		return []ports.Tab{{ID: 0, Name: csvTabName}}, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	var tabs []ports.Tab
	for i, name := range f.GetSheetList() {
		tabs = append(tabs, ports.Tab{ID: i, Name: name})
	}
	return tabs, nil
}

// GetValues returns the formatted cell text of a sheet, the way it displays
func (s *WorkbookSource) GetValues(ctx context.Context, spreadsheetID, tabName string) ([][]string, error) {
	path, err := s.path(spreadsheetID)
	if err != nil {
		return nil, err
	}
	if isCSV(path) {
		if tabName != csvTabName {
			return nil, core.NewNotFoundError(core.ErrTabNotFound, spreadsheetID+"/"+tabName)
		}
		return readCSV(path)
	}

	startTime := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(tabName); err != nil || idx < 0 {
		return nil, core.NewNotFoundError(core.ErrTabNotFound, spreadsheetID+"/"+tabName)
	}
	rows, err := f.GetRows(tabName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", tabName, err)
	}
	log.Printf("[WorkbookSource] %s/%s read in %.2fms (%d rows)",
		spreadsheetID, tabName, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// path resolves an id to a file inside the directory
func (s *WorkbookSource) path(spreadsheetID string) (string, error) {
	if spreadsheetID == "" || spreadsheetID != filepath.Base(spreadsheetID) || !supported(spreadsheetID) {
		return "", fmt.Errorf("invalid workbook id %q", spreadsheetID)
	}
	path := filepath.Join(s.dir, spreadsheetID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", core.NewNotFoundError(core.ErrWorkbookNotFound, spreadsheetID)
	}
	return path, nil
}

func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}
