package testkit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sheetflow/adapters/postgres"
	"sheetflow/domain/core"
	"sheetflow/domain/dataset"
)

// InMemoryStore implements ports.DatasetStore in memory. It enforces the same
// references the database does: a dataset cannot be deleted while it has rows
// or columns, and a source cannot be deleted while a dataset uses it.
type InMemoryStore struct {
	mu       sync.RWMutex
	sources  map[core.ID]dataset.SheetSource
	datasets map[core.ID]dataset.Dataset
	columns  map[core.ID][]dataset.Column
	rows     map[core.ID][]dataset.StoredRow
	failures map[string]error
}

// NewInMemoryStore creates an empty store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sources:  make(map[core.ID]dataset.SheetSource),
		datasets: make(map[core.ID]dataset.Dataset),
		columns:  make(map[core.ID][]dataset.Column),
		rows:     make(map[core.ID][]dataset.StoredRow),
		failures: make(map[string]error),
	}
}

// FailOn makes every later call of the named method return err
func (s *InMemoryStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// failure must be called with s.mu held
func (s *InMemoryStore) failure(method string) error {
	return s.failures[method]
}

func (s *InMemoryStore) FindSource(ctx context.Context, userID core.ID, spreadsheetID, sheetName string) (*dataset.SheetSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("FindSource"); err != nil {
		return nil, err
	}
	for _, src := range s.sources {
		if src.UserID == userID && src.SpreadsheetID == spreadsheetID && src.SheetName == sheetName {
			out := src
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) CreateSource(ctx context.Context, src *dataset.SheetSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateSource"); err != nil {
		return err
	}
	if src.ID.IsEmpty() {
		src.ID = core.NewID()
	}
	s.sources[src.ID] = *src
	return nil
}

func (s *InMemoryStore) CountSourceReferences(ctx context.Context, sourceID core.ID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("CountSourceReferences"); err != nil {
		return 0, err
	}
	n := 0
	for _, ds := range s.datasets {
		if ds.SourceID == sourceID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) DeleteSource(ctx context.Context, sourceID core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteSource"); err != nil {
		return err
	}
	for _, ds := range s.datasets {
		if ds.SourceID == sourceID {
			return fmt.Errorf("source %s still referenced by dataset %s", sourceID, ds.ID)
		}
	}
	delete(s.sources, sourceID)
	return nil
}

func (s *InMemoryStore) CreateDataset(ctx context.Context, ds *dataset.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateDataset"); err != nil {
		return err
	}
	if _, ok := s.sources[ds.SourceID]; !ds.SourceID.IsEmpty() && !ok {
		return fmt.Errorf("source %s does not exist", ds.SourceID)
	}
	if ds.ID.IsEmpty() {
		ds.ID = core.NewID()
	}
	if ds.UpdatedAt.IsZero() {
		ds.UpdatedAt = time.Now().UTC()
	}
	s.datasets[ds.ID] = *ds
	return nil
}

func (s *InMemoryStore) GetDataset(ctx context.Context, id core.ID) (*dataset.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("GetDataset"); err != nil {
		return nil, err
	}
	ds, ok := s.datasets[id]
	if !ok {
		return nil, core.NewNotFoundError(core.ErrDatasetNotFound, id.String())
	}
	return &ds, nil
}

func (s *InMemoryStore) ListDatasets(ctx context.Context, userID core.ID) ([]*dataset.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("ListDatasets"); err != nil {
		return nil, err
	}
	out := make([]*dataset.Dataset, 0)
	for _, ds := range s.datasets {
		if ds.UserID == userID {
			ds := ds
			out = append(out, &ds)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteDataset(ctx context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteDataset"); err != nil {
		return err
	}
	if len(s.rows[id]) > 0 || len(s.columns[id]) > 0 {
		return fmt.Errorf("dataset %s still has rows or columns", id)
	}
	delete(s.datasets, id)
	return nil
}

func (s *InMemoryStore) InsertColumns(ctx context.Context, cols []dataset.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertColumns"); err != nil {
		return err
	}
	for _, c := range cols {
		if _, ok := s.datasets[c.DatasetID]; !ok {
			return fmt.Errorf("dataset %s does not exist", c.DatasetID)
		}
		s.columns[c.DatasetID] = append(s.columns[c.DatasetID], c)
	}
	return nil
}

func (s *InMemoryStore) ListColumns(ctx context.Context, datasetID core.ID) ([]dataset.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("ListColumns"); err != nil {
		return nil, err
	}
	return append([]dataset.Column(nil), s.columns[datasetID]...), nil
}

func (s *InMemoryStore) DeleteColumns(ctx context.Context, datasetID core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteColumns"); err != nil {
		return err
	}
	delete(s.columns, datasetID)
	return nil
}

// InsertRows stores rows with their reserved keys removed, as the database does
func (s *InMemoryStore) InsertRows(ctx context.Context, rows []dataset.StoredRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertRows"); err != nil {
		return err
	}
	for _, r := range rows {
		if _, ok := s.datasets[r.DatasetID]; !ok {
			return fmt.Errorf("dataset %s does not exist", r.DatasetID)
		}
		r.Data = r.Data.Data()
		s.rows[r.DatasetID] = append(s.rows[r.DatasetID], r)
	}
	return nil
}

// QueryRows pages rows in insertion order with the search predicate the
// database applies. An empty batch selects the most recently imported one.
func (s *InMemoryStore) QueryRows(ctx context.Context, q dataset.RowQuery) (*dataset.RowPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("QueryRows"); err != nil {
		return nil, err
	}

	all := s.rows[q.DatasetID]
	batch := q.ImportBatchID
	if batch.IsEmpty() && len(all) > 0 {
		latest := all[0]
		for _, r := range all[1:] {
			if !r.ImportedAt.Before(latest.ImportedAt) {
				latest = r
			}
		}
		batch = latest.ImportBatchID
	}
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	var matched []dataset.StoredRow
	for _, r := range all {
		if r.ImportBatchID != batch || (q.Role != "" && r.Role != q.Role) {
			continue
		}
		if needle != "" && !strings.Contains(postgres.SearchText(r.Data), needle) {
			continue
		}
		matched = append(matched, r)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	start := min(max(q.Offset, 0), len(matched))
	end := min(start+limit, len(matched))
	return &dataset.RowPage{Rows: append([]dataset.StoredRow{}, matched[start:end]...), Total: len(matched)}, nil
}

func (s *InMemoryStore) ListBatches(ctx context.Context, datasetID core.ID) ([]dataset.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("ListBatches"); err != nil {
		return nil, err
	}
	index := make(map[core.ID]int)
	var batches []dataset.Batch
	for _, r := range s.rows[datasetID] {
		i, ok := index[r.ImportBatchID]
		if !ok {
			i = len(batches)
			index[r.ImportBatchID] = i
			batches = append(batches, dataset.Batch{ImportBatchID: r.ImportBatchID, ImportedAt: r.ImportedAt})
		}
		batches[i].RowCount++
		if r.ImportedAt.Before(batches[i].ImportedAt) {
			batches[i].ImportedAt = r.ImportedAt
		}
	}
	sort.SliceStable(batches, func(i, j int) bool { return batches[i].ImportedAt.After(batches[j].ImportedAt) })
	return batches, nil
}

func (s *InMemoryStore) DeleteRows(ctx context.Context, datasetID core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteRows"); err != nil {
		return err
	}
	delete(s.rows, datasetID)
	return nil
}

// Sources returns the number of stored sources
func (s *InMemoryStore) Sources() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}
