package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetflow/adapters/excel"
	"sheetflow/adapters/sheets"
	"sheetflow/internal/config"
)

func TestNewWithWorkbookSource(t *testing.T) {
	cfg := &config.Config{
		Sheets: config.SheetsConfig{Source: config.SourceXLSX, XLSXDir: t.TempDir()},
		Import: config.ImportConfig{MaxSamples: 50, EnumThreshold: 5, DayFirst: false, IDFields: []string{"sku"}, DropMissing: true},
	}

	c, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.IsType(t, &excel.WorkbookSource{}, c.Source)

	opts := c.Pipeline.Options()
	assert.Equal(t, 50, opts.Infer.MaxSamples)
	assert.Equal(t, 5, opts.Infer.EnumCardinalityThreshold)
	assert.False(t, opts.Coerce.DayFirst)
	assert.False(t, opts.Validate.DayFirst)
	assert.Equal(t, []string{"sku"}, opts.IDFields)
	assert.True(t, opts.DropMissing)
}

func TestNewWithGoogleSource(t *testing.T) {
	cfg := &config.Config{Sheets: config.SheetsConfig{Source: config.SourceGoogle, AccessToken: "tok"}}
	c, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.IsType(t, &sheets.Client{}, c.Source)

	_, err = New(context.Background(), &config.Config{Sheets: config.SheetsConfig{Source: config.SourceGoogle}}, Options{})
	assert.Error(t, err)
}

func TestInitWithDatabaseRequiresConnection(t *testing.T) {
	c, err := New(context.Background(), &config.Config{Sheets: config.SheetsConfig{Source: config.SourceXLSX, XLSXDir: t.TempDir()}}, Options{})
	require.NoError(t, err)
	assert.Error(t, c.InitWithDatabase(nil))
}
