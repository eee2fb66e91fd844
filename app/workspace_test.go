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
	domaingrouping "sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
	apperrors "sheetflow/internal/errors"
)

func orderValues() [][]string {
	return [][]string{
		{"orderNumber", "productCode", "qty", "price", "status"},
		{"A1", "P1", "2", "10.50", "new"},
		{"A1", "P2", "1", "3.00", "new"},
		{"A2", "P1", "5", "10.50", "new"},
	}
}

func orderRequest() PreviewRequest {
	return PreviewRequest{SpreadsheetID: "sheet-1", SpreadsheetName: "Orders", TabName: "Q1"}
}

func newTestWorkspace(source *MockSheetSource, store *MockDatasetStore) *Workspace {
	opts := DefaultPipelineOptions()
	opts.PreserveFields = []string{"status"}
	return NewWorkspace("ws-1", source, store, NewPipeline(opts))
}

func loadedWorkspace(t *testing.T, store *MockDatasetStore) (*Workspace, *MockSheetSource) {
	t.Helper()
	source := new(MockSheetSource)
	source.On("GetValues", mock.Anything, "sheet-1", "Q1").Return(orderValues(), nil).Once()
	ws := newTestWorkspace(source, store)
	_, err := ws.LoadPreview(context.Background(), orderRequest())
	require.NoError(t, err)
	return ws, source
}

func TestLoadPreview(t *testing.T) {
	ws, source := loadedWorkspace(t, nil)
	source.AssertExpectations(t)

	state := ws.State()
	require.Equal(t, StatusReady, state.Status)
	snap := state.Snapshot
	assert.Equal(t, []string{"orderNumber", "productCode", "qty", "price", "status"}, snap.Headers)
	require.Len(t, snap.Rows, 3)
	assert.Equal(t, sheet.KindNumber, snap.Rows[0].Get("qty").Kind)
	assert.Equal(t, 10.5, snap.Rows[0].Get("price").Num)
	assert.NotEmpty(t, snap.Rows[0].ID())
	assert.NotEqual(t, snap.Rows[0].ID(), snap.Rows[1].ID())
	assert.Empty(t, snap.Issues)
	assert.Equal(t, 3, state.Quality().Rows)
}

func TestLoadPreviewFailure(t *testing.T) {
	source := new(MockSheetSource)
	source.On("GetValues", mock.Anything, "sheet-1", "Q1").Return(nil, errors.New("quota exceeded"))
	ws := newTestWorkspace(source, nil)

	_, err := ws.LoadPreview(context.Background(), orderRequest())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeExternalService, apperrors.GetCode(err))

	state := ws.State()
	assert.Equal(t, StatusError, state.Status)
	assert.Contains(t, state.Error, "quota exceeded")

	state, err = ws.Retry()
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, state.Status)
}

func TestLoadPreviewRejectsInvalidRequest(t *testing.T) {
	ws := newTestWorkspace(new(MockSheetSource), nil)
	_, err := ws.LoadPreview(context.Background(), PreviewRequest{TabName: "Q1"})
	require.Error(t, err)
	assert.Equal(t, StatusIdle, ws.State().Status)
}

func TestEditsProduceNewSnapshots(t *testing.T) {
	ws, _ := loadedWorkspace(t, nil)
	before := ws.State().Snapshot

	after, err := ws.SetCell(0, "qty", sheet.NewString("lots"))
	require.NoError(t, err)
	assert.Equal(t, sheet.KindNumber, before.Rows[0].Get("qty").Kind)
	require.Len(t, after.Issues, 1)
	assert.Equal(t, sheet.CodeNumberInvalid, after.Issues[0].Code)

	after, err = ws.OverrideColumnType("qty", sheet.TypeString)
	require.NoError(t, err)
	assert.Empty(t, after.Issues)
	assert.Equal(t, sheet.NewString("lots"), after.Rows[0].Get("qty"))

	after, err = ws.RemoveRows([]int{2})
	require.NoError(t, err)
	assert.Len(t, after.Rows, 2)

	after, err = ws.RemoveColumns([]string{"status"})
	require.NoError(t, err)
	assert.NotContains(t, after.Headers, "status")
	_, present := after.Rows[0]["status"]
	assert.False(t, present)

	_, err = ws.RemoveColumns([]string{"missing"})
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
	assert.Same(t, after, ws.State().Snapshot)
}

func TestGroupingCollapseExpand(t *testing.T) {
	ws, _ := loadedWorkspace(t, nil)
	cfg := domaingrouping.DefaultConfig("orderNumber")

	snap, err := ws.SetGrouping(&cfg)
	require.NoError(t, err)
	require.NotNil(t, snap.Grouping)
	require.Len(t, snap.Grouping.Result.Groups, 2)
	// A1 has two rows and gets a parent; A2 stays a plain row
	assert.Len(t, snap.Grouping.Flat, 4)

	groupID := snap.Grouping.Result.Groups[0].GroupID
	snap, err = ws.Collapse(groupID)
	require.NoError(t, err)
	assert.Len(t, snap.Grouping.Flat, 2)

	snap, err = ws.Expand(groupID)
	require.NoError(t, err)
	assert.Len(t, snap.Grouping.Flat, 4)

	_, err = ws.Collapse("g_unknown")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))

	snap, err = ws.SetGrouping(nil)
	require.NoError(t, err)
	assert.Nil(t, snap.Grouping)
}

func TestRefreshPreservesReviewedStatus(t *testing.T) {
	ws, source := loadedWorkspace(t, nil)
	_, err := ws.SetCell(0, "status", sheet.NewString("reviewed"))
	require.NoError(t, err)

	source.On("GetValues", mock.Anything, "sheet-1", "Q1").Return([][]string{
		{"orderNumber", "productCode", "qty", "price", "status"},
		{"A1", "P1", "4", "10.50", "new"},
		{"A2", "P1", "5", "10.50", "new"},
		{"A3", "P9", "1", "1.00", "new"},
	}, nil).Once()

	snap, err := ws.RefreshFromSheets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusReady, ws.State().Status)

	// existing rows keep their order, unmatched rows stay, new rows append
	require.Len(t, snap.Rows, 4)
	assert.Equal(t, sheet.NewString("reviewed"), snap.Rows[0].Get("status"))
	assert.Equal(t, 4.0, snap.Rows[0].Get("qty").Num)
	assert.Equal(t, "P2", snap.Rows[1].Get("productCode").Str)
	assert.Equal(t, "A3", snap.Rows[3].Get("orderNumber").Str)
}

func TestRefreshRequiresLoadedSnapshot(t *testing.T) {
	ws := newTestWorkspace(new(MockSheetSource), nil)
	_, err := ws.RefreshFromSheets(context.Background())
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
}

func TestSaveToDatasetWithGrouping(t *testing.T) {
	ctx := context.Background()
	store := new(MockDatasetStore)
	ws, _ := loadedWorkspace(t, store)
	cfg := domaingrouping.DefaultConfig("orderNumber")
	_, err := ws.SetGrouping(&cfg)
	require.NoError(t, err)

	user := core.ID("user-1")
	store.On("FindSource", mock.Anything, user, "sheet-1", "Q1").Return(nil, nil)
	store.On("CreateSource", mock.Anything, mock.AnythingOfType("*dataset.SheetSource")).
		Run(func(args mock.Arguments) { args.Get(1).(*dataset.SheetSource).ID = "src-1" }).Return(nil)
	store.On("CreateDataset", mock.Anything, mock.MatchedBy(func(ds *dataset.Dataset) bool {
		return ds.SourceID == "src-1" && ds.GroupingEnabled && ds.GroupingConfig != nil
	})).Run(func(args mock.Arguments) { args.Get(1).(*dataset.Dataset).ID = "ds-1" }).Return(nil)

	var columns []dataset.Column
	store.On("InsertColumns", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { columns = args.Get(1).([]dataset.Column) }).Return(nil)
	var rows []dataset.StoredRow
	store.On("InsertRows", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { rows = args.Get(1).([]dataset.StoredRow) }).Return(nil)

	summary, err := ws.SaveToDataset(ctx, SaveRequest{
		Name:            "Q1 orders",
		UserID:          user,
		FieldStrategies: map[string]domaingrouping.FieldStrategy{"qty": domaingrouping.SumOf("qty")},
	})
	require.NoError(t, err)
	store.AssertExpectations(t)

	assert.Equal(t, core.ID("ds-1"), summary.DatasetID)
	assert.Equal(t, 2, summary.Parents)
	assert.Equal(t, 3, summary.Children)
	assert.Equal(t, 5, summary.Rows)

	require.Len(t, columns, 5)
	assert.Equal(t, sheet.TypeNumber, columns[2].Type)
	assert.Equal(t, "qty", columns[2].MapFrom)

	require.Len(t, rows, 5)
	for _, r := range rows {
		assert.Equal(t, core.ID("ds-1"), r.DatasetID)
		assert.Equal(t, summary.ImportBatchID, r.ImportBatchID)
		assert.NotEmpty(t, r.GroupKey)
	}
	assert.Equal(t, dataset.RoleParent, rows[0].Role)
	assert.Equal(t, dataset.RoleChild, rows[4].Role)

	state := ws.State()
	assert.Equal(t, StatusReady, state.Status)
	require.NotNil(t, state.LastSave)
	assert.Equal(t, summary.ImportBatchID, state.LastSave.ImportBatchID)
}

func TestSaveToDatasetReusesSourceAndKeepsWorkOnFailure(t *testing.T) {
	store := new(MockDatasetStore)
	ws, _ := loadedWorkspace(t, store)
	before := ws.State().Snapshot

	store.On("FindSource", mock.Anything, core.ID("u"), "sheet-1", "Q1").
		Return(&dataset.SheetSource{ID: "src-existing"}, nil)
	store.On("CreateDataset", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { args.Get(1).(*dataset.Dataset).ID = "ds-2" }).Return(nil)
	store.On("InsertColumns", mock.Anything, mock.Anything).Return(nil)
	store.On("InsertRows", mock.Anything, mock.MatchedBy(func(rows []dataset.StoredRow) bool {
		return len(rows) == 3 && rows[0].Role == dataset.RoleRow
	})).Return(errors.New("copy failed"))

	_, err := ws.SaveToDataset(context.Background(), SaveRequest{Name: "plain", UserID: "u"})
	require.Error(t, err)
	store.AssertNotCalled(t, "CreateSource", mock.Anything, mock.Anything)

	state := ws.State()
	assert.Equal(t, StatusReady, state.Status)
	assert.Contains(t, state.Error, "copy failed")
	assert.Same(t, before, state.Snapshot)
}

func TestSaveToDatasetRequiresName(t *testing.T) {
	ws, _ := loadedWorkspace(t, nil)
	_, err := ws.SaveToDataset(context.Background(), SaveRequest{UserID: "u"})
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
}

func TestLoadPreviewKeepsSourceErrorCode(t *testing.T) {
	source := new(MockSheetSource)
	denied := apperrors.New(apperrors.CodeUnauthorized, "sheets authorization failed")
	source.On("GetValues", mock.Anything, "sheet-1", "Q1").Return(nil, denied)
	ws := newTestWorkspace(source, nil)

	_, err := ws.LoadPreview(context.Background(), orderRequest())
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.GetCode(err))
	assert.Equal(t, StatusError, ws.State().Status)
}

func TestSaveToDatasetMatchesPreviewGroups(t *testing.T) {
	ctx := context.Background()
	source := new(MockSheetSource)
	source.On("GetValues", mock.Anything, "sheet-1", "Q1").Return([][]string{
		{"orderNumber", "productCode", "qty"},
		{"A1", "x", "1"},
		{"a1 ", "y", "2"},
		{"A2", "z", "3"},
	}, nil).Once()
	store := new(MockDatasetStore)
	ws := newTestWorkspace(source, store)
	_, err := ws.LoadPreview(ctx, orderRequest())
	require.NoError(t, err)

	cfg := domaingrouping.DefaultConfig("orderNumber")
	snap, err := ws.SetGrouping(&cfg)
	require.NoError(t, err)
	groups := snap.Grouping.Result.Groups
	require.Len(t, groups, 2)
	assert.Contains(t, snap.Grouping.Roles.ChildFields, "productCode")

	store.On("FindSource", mock.Anything, core.ID("u"), "sheet-1", "Q1").
		Return(&dataset.SheetSource{ID: "src-1"}, nil)
	var saved *dataset.Dataset
	store.On("CreateDataset", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*dataset.Dataset)
		saved.ID = "ds-1"
	}).Return(nil)
	store.On("InsertColumns", mock.Anything, mock.Anything).Return(nil)
	var rows []dataset.StoredRow
	store.On("InsertRows", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { rows = args.Get(1).([]dataset.StoredRow) }).Return(nil)

	summary, err := ws.SaveToDataset(ctx, SaveRequest{Name: "folded", UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Parents)
	assert.Equal(t, 3, summary.Children)

	require.NotNil(t, saved.GroupingConfig)
	assert.Contains(t, saved.GroupingConfig.ChildFields, "productCode")

	var parentKeys []string
	for _, r := range rows {
		if r.Role == dataset.RoleParent {
			parentKeys = append(parentKeys, r.GroupKey)
		}
	}
	assert.Equal(t, []string{groups[0].GroupID, groups[1].GroupID}, parentKeys)
}

func TestRefreshKeepsRowsWithRepeatedIDKeys(t *testing.T) {
	grid := [][]string{
		{"orderNumber", "productCode", "qty"},
		{"1001", "P1", "1"},
		{"1001", "P1", "2"},
		{"1002", "P1", "3"},
	}
	source := new(MockSheetSource)
	source.On("GetValues", mock.Anything, "sheet-1", "Q1").Return(grid, nil).Twice()
	ws := newTestWorkspace(source, nil)

	before, err := ws.LoadPreview(context.Background(), orderRequest())
	require.NoError(t, err)
	require.Len(t, before.Rows, 3)
	assert.NotEqual(t, before.Rows[0].ID(), before.Rows[1].ID())

	after, err := ws.RefreshFromSheets(context.Background())
	require.NoError(t, err)
	require.Len(t, after.Rows, 3)
	assert.Equal(t, 2.0, after.Rows[1].Get("qty").Num)
}
