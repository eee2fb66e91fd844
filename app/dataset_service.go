package app

import (
	"context"
	"log"

	"sheetflow/domain/core"
	"sheetflow/domain/dataset"
	"sheetflow/internal/errors"
	"sheetflow/ports"
)

// DatasetService reads and deletes persisted datasets
type DatasetService struct {
	store ports.DatasetStore
}

// NewDatasetService creates a dataset service
func NewDatasetService(store ports.DatasetStore) *DatasetService {
	return &DatasetService{store: store}
}

// DatasetDetail is a dataset with its columns and import batches
type DatasetDetail struct {
	Dataset *dataset.Dataset `json:"dataset"`
	Columns []dataset.Column `json:"columns"`
	Batches []dataset.Batch  `json:"batches"`
}

// ListDatasets returns a user's datasets
func (s *DatasetService) ListDatasets(ctx context.Context, userID core.ID) ([]*dataset.Dataset, error) {
	out, err := s.store.ListDatasets(ctx, userID)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return out, nil
}

// GetDataset returns one dataset with its columns and batches
func (s *DatasetService) GetDataset(ctx context.Context, id core.ID) (*DatasetDetail, error) {
	ds, err := s.getDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	cols, err := s.store.ListColumns(ctx, id)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	batches, err := s.store.ListBatches(ctx, id)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return &DatasetDetail{Dataset: ds, Columns: cols, Batches: batches}, nil
}

// QueryRows returns a page of stored rows
func (s *DatasetService) QueryRows(ctx context.Context, q dataset.RowQuery) (*dataset.RowPage, error) {
	switch q.Role {
	case "", dataset.RoleRow, dataset.RoleParent, dataset.RoleChild:
	default:
		return nil, errors.InvalidInput("role must be row, parent or child")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, errors.InvalidInput("limit and offset must not be negative")
	}
	page, err := s.store.QueryRows(ctx, q)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return page, nil
}

// DeepDelete removes a dataset's rows, then its columns, then the dataset, then
// its source when no other dataset references it. The first failing step
// aborts the delete; completed steps are not rolled back.
func (s *DatasetService) DeepDelete(ctx context.Context, id core.ID) error {
	ds, err := s.getDataset(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteRows(ctx, id); err != nil {
		return errors.PartialDelete("rows", err)
	}
	if err := s.store.DeleteColumns(ctx, id); err != nil {
		return errors.PartialDelete("columns", err)
	}
	if err := s.store.DeleteDataset(ctx, id); err != nil {
		return errors.PartialDelete("dataset", err)
	}

	if ds.SourceID.IsEmpty() {
		log.Printf("[DatasetService] deleted dataset %s", id)
		return nil
	}
	refs, err := s.store.CountSourceReferences(ctx, ds.SourceID)
	if err != nil {
		return errors.PartialDelete("source", err)
	}
	if refs == 0 {
		if err := s.store.DeleteSource(ctx, ds.SourceID); err != nil {
			return errors.PartialDelete("source", err)
		}
		log.Printf("[DatasetService] deleted dataset %s and source %s", id, ds.SourceID)
		return nil
	}
	log.Printf("[DatasetService] deleted dataset %s; source %s still referenced by %d", id, ds.SourceID, refs)
	return nil
}

func (s *DatasetService) getDataset(ctx context.Context, id core.ID) (*dataset.Dataset, error) {
	ds, err := s.store.GetDataset(ctx, id)
	if core.IsNotFoundError(err) {
		return nil, errors.NotFound("dataset " + id.String())
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return ds, nil
}
