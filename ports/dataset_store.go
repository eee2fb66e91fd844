package ports

import (
	"context"

	"sheetflow/domain/core"
	"sheetflow/domain/dataset"
)

// DatasetStore persists datasets, their columns and batched rows.
// Multi-step callers get no transaction across methods.
type DatasetStore interface {
	// Sources
	FindSource(ctx context.Context, userID core.ID, spreadsheetID, sheetName string) (*dataset.SheetSource, error) // nil when absent
	CreateSource(ctx context.Context, src *dataset.SheetSource) error
	CountSourceReferences(ctx context.Context, sourceID core.ID) (int, error)
	DeleteSource(ctx context.Context, sourceID core.ID) error

	// Datasets and columns
	CreateDataset(ctx context.Context, ds *dataset.Dataset) error
	GetDataset(ctx context.Context, id core.ID) (*dataset.Dataset, error) // wraps core.ErrDatasetNotFound
	ListDatasets(ctx context.Context, userID core.ID) ([]*dataset.Dataset, error)
	DeleteDataset(ctx context.Context, id core.ID) error
	InsertColumns(ctx context.Context, cols []dataset.Column) error
	ListColumns(ctx context.Context, datasetID core.ID) ([]dataset.Column, error)
	DeleteColumns(ctx context.Context, datasetID core.ID) error

	// Rows
	InsertRows(ctx context.Context, rows []dataset.StoredRow) error
	QueryRows(ctx context.Context, q dataset.RowQuery) (*dataset.RowPage, error)
	ListBatches(ctx context.Context, datasetID core.ID) ([]dataset.Batch, error)
	DeleteRows(ctx context.Context, datasetID core.ID) error
}
