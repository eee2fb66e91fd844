package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetflow/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "XLSX_DIR", "SHEET_SOURCE", "IMPORT_ID_FIELDS", "IMPORT_PRESERVE_FIELDS", "SHEETS_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceGoogle, cfg.Sheets.Source)
	assert.Equal(t, 30*time.Second, cfg.Sheets.Timeout)
	assert.Equal(t, 1000, cfg.Import.MaxSamples)
	assert.True(t, cfg.Import.DayFirst)
	assert.Equal(t, []string{"orderNumber", "productCode"}, cfg.Import.IDFields)
	assert.Nil(t, cfg.Import.PreserveFields)

	err = cfg.RequireDatabase()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XLSX_DIR", "/tmp/books")
	t.Setenv("SHEET_SOURCE", "")
	t.Setenv("IMPORT_PRESERVE_FIELDS", "status, notes ,,")
	t.Setenv("IMPORT_DAY_FIRST", "false")
	t.Setenv("SHEETS_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceXLSX, cfg.Sheets.Source)
	assert.Equal(t, []string{"status", "notes"}, cfg.Import.PreserveFields)
	assert.False(t, cfg.Import.DayFirst)
	assert.Equal(t, 5*time.Second, cfg.Sheets.Timeout)
}

func TestLoadRejectsXLSXWithoutDir(t *testing.T) {
	t.Setenv("XLSX_DIR", "")
	t.Setenv("SHEET_SOURCE", "xlsx")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
