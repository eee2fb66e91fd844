package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"sheetflow/domain/core"
	"sheetflow/domain/dataset"
	"sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
	"sheetflow/ports"
)

// foreignKeyViolation is the Postgres error code for a referenced row
const foreignKeyViolation = "23503"

// datasetStore implements ports.DatasetStore
type datasetStore struct {
	db *sqlx.DB
}

// NewDatasetStore creates a new dataset store
func NewDatasetStore(db *sqlx.DB) ports.DatasetStore {
	return &datasetStore{db: db}
}

// FindSource looks up the source for a user's spreadsheet tab
func (r *datasetStore) FindSource(ctx context.Context, userID core.ID, spreadsheetID, sheetName string) (*dataset.SheetSource, error) {
	query := `SELECT id, user_id, spreadsheet_id, spreadsheet_name, sheet_name, header_row
	FROM sheet_sources
	WHERE user_id = $1 AND spreadsheet_id = $2 AND sheet_name = $3
	ORDER BY created_at
	LIMIT 1`

	var src dataset.SheetSource
	if err := r.db.GetContext(ctx, &src, query, userID, spreadsheetID, sheetName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find sheet source: %w", err)
	}
	return &src, nil
}

// CreateSource inserts a sheet source, assigning an id when empty
func (r *datasetStore) CreateSource(ctx context.Context, src *dataset.SheetSource) error {
	if src.ID.IsEmpty() {
		src.ID = core.NewID()
	}
	query := `INSERT INTO sheet_sources (id, user_id, spreadsheet_id, spreadsheet_name, sheet_name, header_row)
	VALUES (:id, :user_id, :spreadsheet_id, :spreadsheet_name, :sheet_name, :header_row)`

	if _, err := r.db.NamedExecContext(ctx, query, src); err != nil {
		return fmt.Errorf("failed to create sheet source: %w", err)
	}
	return nil
}

// CountSourceReferences counts the datasets still pointing at a source
func (r *datasetStore) CountSourceReferences(ctx context.Context, sourceID core.ID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM datasets WHERE source_id = $1`, sourceID); err != nil {
		return 0, fmt.Errorf("failed to count source references: %w", err)
	}
	return n, nil
}

// DeleteSource removes a sheet source
func (r *datasetStore) DeleteSource(ctx context.Context, sourceID core.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sheet_sources WHERE id = $1`, sourceID); err != nil {
		return fmt.Errorf("failed to delete sheet source: %w", describe(err))
	}
	return nil
}

// datasetRecord is the scanned form of a datasets row
type datasetRecord struct {
	ID              core.ID        `db:"id"`
	UserID          core.ID        `db:"user_id"`
	Name            string         `db:"name"`
	SourceID        sql.NullString `db:"source_id"`
	GroupingEnabled bool           `db:"grouping_enabled"`
	GroupingConfig  []byte         `db:"grouping_config"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (rec datasetRecord) toDataset() (*dataset.Dataset, error) {
	ds := &dataset.Dataset{
		ID:              rec.ID,
		UserID:          rec.UserID,
		Name:            rec.Name,
		SourceID:        core.ID(rec.SourceID.String),
		GroupingEnabled: rec.GroupingEnabled,
		UpdatedAt:       rec.UpdatedAt,
	}
	if len(rec.GroupingConfig) > 0 && string(rec.GroupingConfig) != "null" {
		var cfg grouping.PersistedConfig
		if err := json.Unmarshal(rec.GroupingConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal grouping config: %w", err)
		}
		ds.GroupingConfig = &cfg
	}
	return ds, nil
}

const datasetColumns = `id, user_id, name, source_id, grouping_enabled, grouping_config, updated_at`

// CreateDataset inserts a dataset, assigning an id when empty
func (r *datasetStore) CreateDataset(ctx context.Context, ds *dataset.Dataset) error {
	if ds.ID.IsEmpty() {
		ds.ID = core.NewID()
	}
	if ds.UpdatedAt.IsZero() {
		ds.UpdatedAt = time.Now().UTC()
	}

	var configJSON []byte
	if ds.GroupingConfig != nil {
		var err error
		if configJSON, err = json.Marshal(ds.GroupingConfig); err != nil {
			return fmt.Errorf("failed to marshal grouping config: %w", err)
		}
	}

	var sourceID interface{}
	if !ds.SourceID.IsEmpty() {
		sourceID = ds.SourceID
	}

	query := `INSERT INTO datasets (` + datasetColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		ds.ID, ds.UserID, ds.Name, sourceID, ds.GroupingEnabled, nullableJSON(configJSON), ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

// GetDataset retrieves a dataset by its ID
func (r *datasetStore) GetDataset(ctx context.Context, id core.ID) (*dataset.Dataset, error) {
	var rec datasetRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError(core.ErrDatasetNotFound, id.String())
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return rec.toDataset()
}

// ListDatasets returns a user's datasets, most recently updated first
func (r *datasetStore) ListDatasets(ctx context.Context, userID core.ID) ([]*dataset.Dataset, error) {
	var recs []datasetRecord
	err := r.db.SelectContext(ctx, &recs,
		`SELECT `+datasetColumns+` FROM datasets WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}

	out := make([]*dataset.Dataset, 0, len(recs))
	for _, rec := range recs {
		ds, err := rec.toDataset()
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

// DeleteDataset removes the dataset row itself
func (r *datasetStore) DeleteDataset(ctx context.Context, id core.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", describe(err))
	}
	return nil
}

// InsertColumns bulk-inserts column descriptions in order
func (r *datasetStore) InsertColumns(ctx context.Context, cols []dataset.Column) error {
	if len(cols) == 0 {
		return nil
	}

	type columnRecord struct {
		dataset.Column
		Position int `db:"position"`
	}
	records := make([]columnRecord, len(cols))
	for i, c := range cols {
		records[i] = columnRecord{Column: c, Position: i}
	}

	query := `INSERT INTO dataset_columns (dataset_id, name, type, map_from, position)
	VALUES (:dataset_id, :name, :type, :map_from, :position)`
	if _, err := r.db.NamedExecContext(ctx, query, records); err != nil {
		return fmt.Errorf("failed to insert columns: %w", err)
	}
	return nil
}

// ListColumns returns a dataset's columns in insertion order
func (r *datasetStore) ListColumns(ctx context.Context, datasetID core.ID) ([]dataset.Column, error) {
	var cols []dataset.Column
	err := r.db.SelectContext(ctx, &cols,
		`SELECT dataset_id, name, type, map_from FROM dataset_columns WHERE dataset_id = $1 ORDER BY position`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	return cols, nil
}

// DeleteColumns removes a dataset's columns
func (r *datasetStore) DeleteColumns(ctx context.Context, datasetID core.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dataset_columns WHERE dataset_id = $1`, datasetID); err != nil {
		return fmt.Errorf("failed to delete columns: %w", describe(err))
	}
	return nil
}

// InsertRows streams rows into dataset_rows with COPY inside one transaction
func (r *datasetStore) InsertRows(ctx context.Context, rows []dataset.StoredRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("dataset_rows",
		"dataset_id", "import_batch_id", "role", "group_key", "data", "search_text", "position", "imported_at"))
	if err != nil {
		return fmt.Errorf("failed to prepare row copy: %w", err)
	}

	for i, row := range rows {
		data, err := json.Marshal(row.Data.Data())
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to marshal row %d: %w", i, err)
		}
		importedAt := row.ImportedAt
		if importedAt.IsZero() {
			importedAt = time.Now().UTC()
		}
		var groupKey interface{}
		if row.GroupKey != "" {
			groupKey = row.GroupKey
		}

		if _, err := stmt.ExecContext(ctx,
			string(row.DatasetID), string(row.ImportBatchID), string(row.Role), groupKey,
			string(data), SearchText(row.Data), i, importedAt,
		); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy row %d: %w", i, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush row copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close row copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rows: %w", err)
	}
	return nil
}

// rowRecord is the scanned form of a dataset_rows row
type rowRecord struct {
	DatasetID     core.ID        `db:"dataset_id"`
	ImportBatchID core.ID        `db:"import_batch_id"`
	Role          string         `db:"role"`
	GroupKey      sql.NullString `db:"group_key"`
	Data          []byte         `db:"data"`
	ImportedAt    time.Time      `db:"imported_at"`
}

// QueryRows returns one page of rows matching q plus the total match count
func (r *datasetStore) QueryRows(ctx context.Context, q dataset.RowQuery) (*dataset.RowPage, error) {
	where, args := rowFilter(q)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM dataset_rows WHERE `+where, args...); err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, max(q.Offset, 0))
	query := fmt.Sprintf(`SELECT dataset_id, import_batch_id, role, group_key, data, imported_at
	FROM dataset_rows WHERE %s
	ORDER BY position, id
	LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	var recs []rowRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}

	page := &dataset.RowPage{Total: total, Rows: make([]dataset.StoredRow, 0, len(recs))}
	for _, rec := range recs {
		var data sheet.Row
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row data: %w", err)
		}
		page.Rows = append(page.Rows, dataset.StoredRow{
			DatasetID:     rec.DatasetID,
			ImportBatchID: rec.ImportBatchID,
			Role:          dataset.RowRole(rec.Role),
			GroupKey:      rec.GroupKey.String,
			Data:          data,
			ImportedAt:    rec.ImportedAt,
		})
	}
	return page, nil
}

// rowFilter builds the WHERE clause for q. An empty batch selects the most
// recent one.
func rowFilter(q dataset.RowQuery) (string, []interface{}) {
	args := []interface{}{q.DatasetID}
	clauses := []string{"dataset_id = $1"}

	if q.ImportBatchID.IsEmpty() {
		clauses = append(clauses, `import_batch_id = (
		SELECT import_batch_id FROM dataset_rows WHERE dataset_id = $1
		ORDER BY imported_at DESC, id DESC LIMIT 1)`)
	} else {
		args = append(args, q.ImportBatchID)
		clauses = append(clauses, fmt.Sprintf("import_batch_id = $%d", len(args)))
	}

	if q.Role != "" {
		args = append(args, string(q.Role))
		clauses = append(clauses, fmt.Sprintf("role = $%d", len(args)))
	}

	if s := strings.TrimSpace(q.Search); s != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
		clauses = append(clauses, fmt.Sprintf("search_text LIKE $%d", len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

// ListBatches returns every import batch of a dataset, newest first
func (r *datasetStore) ListBatches(ctx context.Context, datasetID core.ID) ([]dataset.Batch, error) {
	var batches []dataset.Batch
	err := r.db.SelectContext(ctx, &batches, `SELECT import_batch_id, COUNT(*) AS row_count, MIN(imported_at) AS imported_at
	FROM dataset_rows
	WHERE dataset_id = $1
	GROUP BY import_batch_id
	ORDER BY MIN(imported_at) DESC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

// DeleteRows removes every row of a dataset
func (r *datasetStore) DeleteRows(ctx context.Context, datasetID core.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dataset_rows WHERE dataset_id = $1`, datasetID); err != nil {
		return fmt.Errorf("failed to delete rows: %w", describe(err))
	}
	return nil
}

// SearchText is the lower-cased text of a row's data values, joined by spaces
func SearchText(row sheet.Row) string {
	data := row.Data()
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if t := strings.TrimSpace(data[k].Text()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

// describe names referential failures so a partial delete reads clearly
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return fmt.Errorf("still referenced by %s: %w", pqErr.Table, err)
	}
	return err
}
