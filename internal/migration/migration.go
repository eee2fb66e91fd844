package migration

import (
	"context"

	"sheetflow/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the import store schema. Every statement is
// idempotent so Run can be called on each start.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSheetSourcesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create sheet_sources table")
	}

	if err := r.createDatasetsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create datasets table")
	}

	if err := r.createDatasetColumnsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create dataset_columns table")
	}

	if err := r.createDatasetRowsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create dataset_rows table")
	}

	if err := r.addSearchTextColumn(ctx, db); err != nil {
		return errors.Wrap(err, "failed to add search_text column")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createSheetSourcesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sheet_sources (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			spreadsheet_id TEXT NOT NULL,
			spreadsheet_name TEXT NOT NULL DEFAULT '',
			sheet_name TEXT NOT NULL,
			header_row INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createDatasetsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS datasets (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			name TEXT NOT NULL,
			source_id UUID REFERENCES sheet_sources(id),
			grouping_enabled BOOLEAN NOT NULL DEFAULT false,
			grouping_config JSONB,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createDatasetColumnsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dataset_columns (
			dataset_id UUID NOT NULL REFERENCES datasets(id),
			name TEXT NOT NULL,
			type VARCHAR(16) NOT NULL CHECK (type IN ('string', 'number', 'boolean', 'date')),
			map_from TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (dataset_id, name)
		)
	`)
	return err
}

func (r *MigrationRunner) createDatasetRowsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dataset_rows (
			id BIGSERIAL PRIMARY KEY,
			dataset_id UUID NOT NULL REFERENCES datasets(id),
			import_batch_id UUID NOT NULL,
			role VARCHAR(8) NOT NULL CHECK (role IN ('row', 'parent', 'child')),
			group_key TEXT,
			data JSONB NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			imported_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

// addSearchTextColumn adds the precomputed lower-cased text used by row search
func (r *MigrationRunner) addSearchTextColumn(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'dataset_rows' AND column_name = 'search_text'
			) THEN
				ALTER TABLE dataset_rows ADD COLUMN search_text TEXT NOT NULL DEFAULT '';
			END IF;
		END $$;
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_sheet_sources_lookup ON sheet_sources(user_id, spreadsheet_id, sheet_name)`,
		`CREATE INDEX IF NOT EXISTS idx_datasets_user ON datasets(user_id, updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_datasets_source ON datasets(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dataset_rows_batch ON dataset_rows(dataset_id, import_batch_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_dataset_rows_imported ON dataset_rows(dataset_id, imported_at DESC)`,
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
