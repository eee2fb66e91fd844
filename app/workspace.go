package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"sheetflow/domain/core"
	"sheetflow/domain/dataset"
	domaingrouping "sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
	"sheetflow/internal/errors"
	"sheetflow/internal/grouping"
	"sheetflow/ports"
)

// ErrSuperseded is returned for results of a request a newer one replaced
var ErrSuperseded = errors.New(errors.CodeBusy, "result superseded by a newer request")

// SaveRequest names the dataset a save creates
type SaveRequest struct {
	Name            string                                  `json:"name"`
	UserID          core.ID                                 `json:"user_id"`
	FieldStrategies map[string]domaingrouping.FieldStrategy `json:"field_strategies,omitempty"`
}

// Workspace owns one import session: its state machine and the in-memory
// snapshot. Transformations run under the lock; network calls do not.
type Workspace struct {
	mu       sync.Mutex
	id       string
	state    State
	tokens   uint64
	source   ports.SheetSource
	store    ports.DatasetStore
	pipeline *Pipeline
}

// NewWorkspace creates an idle workspace
func NewWorkspace(id string, source ports.SheetSource, store ports.DatasetStore, pipeline *Pipeline) *Workspace {
	return &Workspace{
		id:       id,
		state:    State{Status: StatusIdle},
		source:   source,
		store:    store,
		pipeline: pipeline,
	}
}

// ID returns the workspace id
func (w *Workspace) ID() string {
	return w.id
}

// State returns the current state
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// dispatch applies an event; the caller holds the lock
func (w *Workspace) dispatch(ev Event) error {
	next, err := Reduce(w.state, ev)
	if err != nil {
		return err
	}
	w.state = next
	return nil
}

// begin dispatches a start event built from a fresh request token
func (w *Workspace) begin(start func(token uint64) Event) (uint64, *Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tokens++
	token := w.tokens
	if err := w.dispatch(start(token)); err != nil {
		return 0, nil, err
	}
	return token, w.state.Snapshot, nil
}

// finish dispatches a completion event and reports whether it was current
func (w *Workspace) finish(ev Event, token uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	current := w.state.RequestToken == token
	if err := w.dispatch(ev); err != nil {
		log.Printf("[Workspace] %s: dropping %s: %v", w.id, ev.eventName(), err)
		return false
	}
	return current
}

// LoadPreview fetches a tab and builds a fresh snapshot from it
func (w *Workspace) LoadPreview(ctx context.Context, req PreviewRequest) (*Snapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	token, _, err := w.begin(func(t uint64) Event { return LoadStarted{Token: t} })
	if err != nil {
		return nil, err
	}

	start := time.Now()
	values, err := w.source.GetValues(ctx, req.SpreadsheetID, req.TabName)
	if err != nil {
		err = sourceError(err)
		w.finish(LoadFailed{Token: token, Err: err}, token)
		return nil, err
	}

	snap := w.pipeline.Build(values, req)
	if !w.finish(LoadSucceeded{Token: token, Snapshot: snap}, token) {
		return nil, ErrSuperseded
	}
	log.Printf("[Workspace] %s: loaded %s/%s (%d rows, %d columns, %d issues) in %v",
		w.id, req.SpreadsheetID, req.TabName, len(snap.Rows), len(snap.Headers), len(snap.Issues), time.Since(start))
	return snap, nil
}

// RefreshFromSheets re-fetches the loaded tab and merges it by row id
func (w *Workspace) RefreshFromSheets(ctx context.Context) (*Snapshot, error) {
	token, snap, err := w.begin(func(t uint64) Event { return SyncStarted{Token: t} })
	if err != nil {
		return nil, err
	}

	values, err := w.source.GetValues(ctx, snap.SpreadsheetID, snap.TabName)
	if err != nil {
		err = sourceError(err)
		w.finish(SyncFailed{Token: token, Err: err}, token)
		return nil, err
	}

	next := w.pipeline.Refresh(snap, values)
	if !w.finish(SyncSucceeded{Token: token, Snapshot: next}, token) {
		return nil, ErrSuperseded
	}
	log.Printf("[Workspace] %s: refreshed %s/%s (%d -> %d rows)",
		w.id, snap.SpreadsheetID, snap.TabName, len(snap.Rows), len(next.Rows))
	return next, nil
}

// SaveToDataset persists the snapshot as a new dataset with one batch of rows.
// The steps are not transactional; a failure leaves earlier steps in place and
// the workspace returns to ready with the error recorded.
func (w *Workspace) SaveToDataset(ctx context.Context, req SaveRequest) (*dataset.SaveSummary, error) {
	if req.Name == "" {
		return nil, errors.InvalidInput("dataset name is required")
	}
	token, snap, err := w.begin(func(t uint64) Event { return SaveStarted{Token: t} })
	if err != nil {
		return nil, err
	}

	summary, err := save(ctx, w.store, snap, req)
	if err != nil {
		w.finish(SaveFailed{Token: token, Err: err}, token)
		return nil, err
	}
	w.finish(SaveSucceeded{Token: token, Summary: *summary}, token)
	log.Printf("[Workspace] %s: saved dataset %s batch %s (%d rows, %d parents, %d children)",
		w.id, summary.DatasetID, summary.ImportBatchID, summary.Rows, summary.Parents, summary.Children)
	return summary, nil
}

// edit applies a pure snapshot transformation while ready
func (w *Workspace) edit(fn func(*Snapshot) (*Snapshot, error)) (*Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := requireReady(w.state); err != nil {
		return nil, err
	}
	next, err := fn(w.state.Snapshot)
	if err != nil {
		return nil, err
	}
	if err := w.dispatch(SnapshotEdited{Snapshot: next}); err != nil {
		return nil, err
	}
	return next, nil
}

// OverrideColumnType changes a column's type and re-coerces every row
func (w *Workspace) OverrideColumnType(column string, t sheet.InferredType) (*Snapshot, error) {
	return w.edit(func(s *Snapshot) (*Snapshot, error) { return w.pipeline.OverrideColumnType(s, column, t) })
}

// SetCell edits one cell
func (w *Workspace) SetCell(index int, column string, value sheet.Value) (*Snapshot, error) {
	return w.edit(func(s *Snapshot) (*Snapshot, error) { return w.pipeline.SetCell(s, index, column, value) })
}

// RemoveRows deletes rows by index
func (w *Workspace) RemoveRows(indexes []int) (*Snapshot, error) {
	return w.edit(func(s *Snapshot) (*Snapshot, error) { return w.pipeline.RemoveRows(s, indexes) })
}

// RemoveColumns deletes columns by name
func (w *Workspace) RemoveColumns(columns []string) (*Snapshot, error) {
	return w.edit(func(s *Snapshot) (*Snapshot, error) { return w.pipeline.RemoveColumns(s, columns) })
}

// SetGrouping enables or, with nil, disables grouping
func (w *Workspace) SetGrouping(cfg *domaingrouping.Config) (*Snapshot, error) {
	return w.edit(func(s *Snapshot) (*Snapshot, error) { return w.pipeline.SetGrouping(s, cfg) })
}

// Collapse hides a group's children
func (w *Workspace) Collapse(groupID string) (*Snapshot, error) {
	return w.edit(func(s *Snapshot) (*Snapshot, error) { return w.pipeline.Collapse(s, groupID) })
}

// Expand shows a group's children
func (w *Workspace) Expand(groupID string) (*Snapshot, error) {
	return w.edit(func(s *Snapshot) (*Snapshot, error) { return w.pipeline.Expand(s, groupID) })
}

// Retry leaves the error status
func (w *Workspace) Retry() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.dispatch(Retry{}); err != nil {
		return w.state, err
	}
	return w.state, nil
}

// sourceError classifies a sheet source failure
func sourceError(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	if core.IsNotFoundError(err) {
		return errors.WithCode(errors.CodeNotFound, err)
	}
	return errors.ExternalServiceError("sheet source", err)
}

// save resolves or creates the source, then creates the dataset, its columns
// and one batch of rows
func save(ctx context.Context, store ports.DatasetStore, snap *Snapshot, req SaveRequest) (*dataset.SaveSummary, error) {
	src, err := store.FindSource(ctx, req.UserID, snap.SpreadsheetID, snap.TabName)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	if src == nil {
		src = &dataset.SheetSource{
			UserID:          req.UserID,
			SpreadsheetID:   snap.SpreadsheetID,
			SpreadsheetName: snap.SpreadsheetName,
			SheetName:       snap.TabName,
			HeaderRow:       snap.HeaderRow,
		}
		if err := store.CreateSource(ctx, src); err != nil {
			return nil, errors.WithCode(errors.CodeDatabaseError, err)
		}
	}

	ds := &dataset.Dataset{
		UserID:          req.UserID,
		Name:            req.Name,
		SourceID:        src.ID,
		GroupingEnabled: snap.Grouping != nil,
		UpdatedAt:       time.Now().UTC(),
	}

	batchID := core.NewBatchID()
	importedAt := time.Now().UTC()
	var rows []dataset.StoredRow
	summary := &dataset.SaveSummary{ImportBatchID: batchID}

	if snap.Grouping != nil {
		cfg := grouping.BuildPersistedConfig(snap.Grouping.Config, snap.Grouping.Roles, req.FieldStrategies)
		ds.GroupingConfig = &cfg
		rollup := grouping.RollupGroups(snap.Grouping.Result.Groups, cfg)
		for _, p := range rollup.Parents {
			rows = append(rows, dataset.StoredRow{Role: dataset.RoleParent, GroupKey: p.GroupID(), Data: p})
		}
		for _, c := range rollup.Children {
			rows = append(rows, dataset.StoredRow{Role: dataset.RoleChild, GroupKey: c.GroupID(), Data: c})
		}
		summary.Parents = rollup.Stats.Parents
		summary.Children = rollup.Stats.Children
	} else {
		for _, r := range snap.Rows {
			rows = append(rows, dataset.StoredRow{Role: dataset.RoleRow, Data: r})
		}
	}

	if err := store.CreateDataset(ctx, ds); err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}

	columns := make([]dataset.Column, len(snap.Schema))
	for i, col := range snap.Schema {
		columns[i] = dataset.Column{
			DatasetID: ds.ID,
			Name:      col.ColumnName,
			Type:      col.InferredType.Persisted(),
			MapFrom:   snap.SourceHeaders[col.ColumnName],
		}
	}
	if err := store.InsertColumns(ctx, columns); err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("dataset %s created without columns: %w", ds.ID, err))
	}

	for i := range rows {
		rows[i].DatasetID = ds.ID
		rows[i].ImportBatchID = batchID
		rows[i].ImportedAt = importedAt
	}
	if err := store.InsertRows(ctx, rows); err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("dataset %s created without rows: %w", ds.ID, err))
	}

	summary.DatasetID = ds.ID
	summary.Rows = len(rows)
	return summary, nil
}
