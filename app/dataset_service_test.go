package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sheetflow/domain/core"
	"sheetflow/domain/dataset"
	apperrors "sheetflow/internal/errors"
)

func TestDeepDeleteRemovesUnreferencedSource(t *testing.T) {
	ctx := context.Background()
	store := new(MockDatasetStore)
	store.On("GetDataset", ctx, core.ID("ds-1")).Return(&dataset.Dataset{ID: "ds-1", SourceID: "src-1"}, nil)
	store.On("DeleteRows", ctx, core.ID("ds-1")).Return(nil)
	store.On("DeleteColumns", ctx, core.ID("ds-1")).Return(nil)
	store.On("DeleteDataset", ctx, core.ID("ds-1")).Return(nil)
	store.On("CountSourceReferences", ctx, core.ID("src-1")).Return(0, nil)
	store.On("DeleteSource", ctx, core.ID("src-1")).Return(nil)

	require.NoError(t, NewDatasetService(store).DeepDelete(ctx, "ds-1"))
	store.AssertExpectations(t)
}

func TestDeepDeleteKeepsSharedSource(t *testing.T) {
	ctx := context.Background()
	store := new(MockDatasetStore)
	store.On("GetDataset", ctx, core.ID("ds-1")).Return(&dataset.Dataset{ID: "ds-1", SourceID: "src-1"}, nil)
	store.On("DeleteRows", ctx, core.ID("ds-1")).Return(nil)
	store.On("DeleteColumns", ctx, core.ID("ds-1")).Return(nil)
	store.On("DeleteDataset", ctx, core.ID("ds-1")).Return(nil)
	store.On("CountSourceReferences", ctx, core.ID("src-1")).Return(1, nil)

	require.NoError(t, NewDatasetService(store).DeepDelete(ctx, "ds-1"))
	store.AssertNotCalled(t, "DeleteSource", mock.Anything, mock.Anything)
}

func TestDeepDeleteAbortsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockDatasetStore)
	store.On("GetDataset", ctx, core.ID("ds-1")).Return(&dataset.Dataset{ID: "ds-1", SourceID: "src-1"}, nil)
	store.On("DeleteRows", ctx, core.ID("ds-1")).Return(nil)
	store.On("DeleteColumns", ctx, core.ID("ds-1")).Return(errors.New("lock timeout"))

	err := NewDatasetService(store).DeepDelete(ctx, "ds-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePartialDelete, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "columns")
	store.AssertNotCalled(t, "DeleteDataset", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "DeleteSource", mock.Anything, mock.Anything)
}

func TestDeepDeleteMissingDataset(t *testing.T) {
	ctx := context.Background()
	store := new(MockDatasetStore)
	store.On("GetDataset", ctx, core.ID("nope")).Return(nil, core.NewNotFoundError(core.ErrDatasetNotFound, "nope"))

	err := NewDatasetService(store).DeepDelete(ctx, "nope")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
	store.AssertNotCalled(t, "DeleteRows", mock.Anything, mock.Anything)
}

func TestQueryRowsValidatesRole(t *testing.T) {
	store := new(MockDatasetStore)
	_, err := NewDatasetService(store).QueryRows(context.Background(), dataset.RowQuery{DatasetID: "ds", Role: "sibling"})
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))

	q := dataset.RowQuery{DatasetID: "ds", Role: dataset.RoleChild, Search: "acme"}
	store.On("QueryRows", mock.Anything, q).Return(&dataset.RowPage{Total: 0}, nil)
	page, err := NewDatasetService(store).QueryRows(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestWorkspaceManager(t *testing.T) {
	m := NewWorkspaceManager(new(MockSheetSource), new(MockDatasetStore), NewPipeline(DefaultPipelineOptions()))
	ws := m.Create()

	got, err := m.Get(ws.ID())
	require.NoError(t, err)
	assert.Same(t, ws, got)
	assert.Equal(t, []string{ws.ID()}, m.List())

	require.NoError(t, m.Delete(ws.ID()))
	_, err = m.Get(ws.ID())
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}
