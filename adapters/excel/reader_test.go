package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sheetflow/domain/core"
	"sheetflow/ports"
)

func writeWorkbook(t *testing.T, dir, name string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Order #", "Amount", "Placed"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"A1", 1234.5, "31/12/2024"}))

	style, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B2", style))

	_, err = f.NewSheet("Archive")
	require.NoError(t, err)
	require.NoError(t, f.SaveAs(filepath.Join(dir, name)))
}

func TestWorkbookSource(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, dir, "orders.xlsx")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	src := NewWorkbookSource(dir)
	ctx := context.Background()

	sheets, err := src.ListSpreadsheets(ctx)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "orders.xlsx", sheets[0].ID)
	assert.Equal(t, "orders", sheets[0].Name)

	tabs, err := src.ListTabs(ctx, "orders.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []ports.Tab{{ID: 0, Name: "Sheet1"}, {ID: 1, Name: "Archive"}}, tabs)

	values, err := src.GetValues(ctx, "orders.xlsx", "Sheet1")
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, []string{"Order #", "Amount", "Placed"}, values[0])
	assert.Equal(t, "1,234.50", values[1][1], "formatted display value")
	assert.Equal(t, "31/12/2024", values[1][2])
}

func TestWorkbookSourceCSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stock.csv"), []byte("sku,qty\nx,1\ny\n"), 0o644))

	src := NewWorkbookSource(dir)
	tabs, err := src.ListTabs(context.Background(), "stock.csv")
	require.NoError(t, err)
	assert.Equal(t, []ports.Tab{{ID: 0, Name: "Sheet1"}}, tabs)

	values, err := src.GetValues(context.Background(), "stock.csv", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"sku", "qty"}, {"x", "1"}, {"y"}}, values)
}

func TestWorkbookSourceRejectsPaths(t *testing.T) {
	src := NewWorkbookSource(t.TempDir())
	for _, id := range []string{"", "../secret.xlsx", "sub/a.xlsx", "a.txt", "missing.xlsx"} {
		_, err := src.GetValues(context.Background(), id, "Sheet1")
		assert.Error(t, err, id)
	}
}

func TestWorkbookSourceNotFound(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, dir, "orders.xlsx")
	src := NewWorkbookSource(dir)

	_, err := src.GetValues(context.Background(), "orders.xlsx", "Missing")
	assert.ErrorIs(t, err, core.ErrTabNotFound)

	_, err = src.GetValues(context.Background(), "gone.xlsx", "Sheet1")
	assert.ErrorIs(t, err, core.ErrWorkbookNotFound)
	assert.True(t, core.IsNotFoundError(err))
}
