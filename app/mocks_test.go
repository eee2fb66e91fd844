package app

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sheetflow/domain/core"
	"sheetflow/domain/dataset"
	"sheetflow/ports"
)

type MockSheetSource struct {
	mock.Mock
}

func (m *MockSheetSource) ListSpreadsheets(ctx context.Context) ([]ports.Spreadsheet, error) {
	args := m.Called(ctx)
	return args.Get(0).([]ports.Spreadsheet), args.Error(1)
}

func (m *MockSheetSource) ListTabs(ctx context.Context, spreadsheetID string) ([]ports.Tab, error) {
	args := m.Called(ctx, spreadsheetID)
	return args.Get(0).([]ports.Tab), args.Error(1)
}

func (m *MockSheetSource) GetValues(ctx context.Context, spreadsheetID, tab string) ([][]string, error) {
	args := m.Called(ctx, spreadsheetID, tab)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]string), args.Error(1)
}

type MockDatasetStore struct {
	mock.Mock
}

func (m *MockDatasetStore) FindSource(ctx context.Context, userID core.ID, spreadsheetID, sheetName string) (*dataset.SheetSource, error) {
	args := m.Called(ctx, userID, spreadsheetID, sheetName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.SheetSource), args.Error(1)
}

func (m *MockDatasetStore) CreateSource(ctx context.Context, src *dataset.SheetSource) error {
	args := m.Called(ctx, src)
	return args.Error(0)
}

func (m *MockDatasetStore) CountSourceReferences(ctx context.Context, sourceID core.ID) (int, error) {
	args := m.Called(ctx, sourceID)
	return args.Int(0), args.Error(1)
}

func (m *MockDatasetStore) DeleteSource(ctx context.Context, sourceID core.ID) error {
	args := m.Called(ctx, sourceID)
	return args.Error(0)
}

func (m *MockDatasetStore) CreateDataset(ctx context.Context, ds *dataset.Dataset) error {
	args := m.Called(ctx, ds)
	return args.Error(0)
}

func (m *MockDatasetStore) GetDataset(ctx context.Context, id core.ID) (*dataset.Dataset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Dataset), args.Error(1)
}

func (m *MockDatasetStore) ListDatasets(ctx context.Context, userID core.ID) ([]*dataset.Dataset, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*dataset.Dataset), args.Error(1)
}

func (m *MockDatasetStore) DeleteDataset(ctx context.Context, id core.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDatasetStore) InsertColumns(ctx context.Context, cols []dataset.Column) error {
	args := m.Called(ctx, cols)
	return args.Error(0)
}

func (m *MockDatasetStore) ListColumns(ctx context.Context, datasetID core.ID) ([]dataset.Column, error) {
	args := m.Called(ctx, datasetID)
	return args.Get(0).([]dataset.Column), args.Error(1)
}

func (m *MockDatasetStore) DeleteColumns(ctx context.Context, datasetID core.ID) error {
	args := m.Called(ctx, datasetID)
	return args.Error(0)
}

func (m *MockDatasetStore) InsertRows(ctx context.Context, rows []dataset.StoredRow) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockDatasetStore) QueryRows(ctx context.Context, q dataset.RowQuery) (*dataset.RowPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.RowPage), args.Error(1)
}

func (m *MockDatasetStore) ListBatches(ctx context.Context, datasetID core.ID) ([]dataset.Batch, error) {
	args := m.Called(ctx, datasetID)
	return args.Get(0).([]dataset.Batch), args.Error(1)
}

func (m *MockDatasetStore) DeleteRows(ctx context.Context, datasetID core.ID) error {
	args := m.Called(ctx, datasetID)
	return args.Error(0)
}
