package profiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetflow/domain/sheet"
)

func strs(values ...string) []sheet.Value {
	out := make([]sheet.Value, len(values))
	for i, s := range values {
		if s == "<nil>" {
			out[i] = sheet.Null()
			continue
		}
		out[i] = sheet.NewString(s)
	}
	return out
}

func TestProfileColumnTypes(t *testing.T) {
	p := NewProfiler(DefaultOptions())

	tests := []struct {
		name     string
		values   []sheet.Value
		expected sheet.InferredType
	}{
		{"numeric strings", strs("25", "34", "4,5", "28"), sheet.TypeNumber},
		{"booleans with numeric zero", strs("true", "FALSE", "yes", "0"), sheet.TypeBoolean},
		{"iso dates", strs("2024-01-05", "2024-02-10", "31/12/2024"), sheet.TypeDate},
		{"text", strs("North", "South", "East"), sheet.TypeString},
		{"all blank", strs("", "<nil>", "  "), sheet.TypeNull},
		{"no samples", nil, sheet.TypeUnknown},
		{"half numbers half text", strs("1", "2", "x", "y"), sheet.TypeMixed},
		{"blanks ignored in ratio", strs("1", "2", "", "<nil>", "3"), sheet.TypeNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := p.ProfileColumn("c", tt.values)
			assert.Equal(t, tt.expected, profile.InferredType)
		})
	}
}

func TestStringAsBooleanIsOptIn(t *testing.T) {
	opts := DefaultOptions()
	opts.StringAsBoolean = false
	profile := NewProfiler(opts).ProfileColumn("c", strs("yes", "no", "yes"))
	assert.Equal(t, sheet.TypeString, profile.InferredType)
	assert.Zero(t, profile.BooleanCount)
}

func TestProfileColumnStatistics(t *testing.T) {
	p := NewProfiler(DefaultOptions())
	profile := p.ProfileColumn("qty", strs("1", "2", "2", "3", "4", "5", "6", "", "<nil>"))

	assert.Equal(t, 9, profile.SampleSize)
	assert.Equal(t, 2, profile.NullCount)
	assert.Equal(t, 6, profile.DistinctCount)
	assert.Len(t, profile.Examples, 5)
	assert.Len(t, profile.AllowedValues, 6)
	require.NotNil(t, profile.Numeric)
	assert.Equal(t, 1.0, profile.Numeric.Min)
	assert.Equal(t, 6.0, profile.Numeric.Max)
}

func TestAllowedValuesRespectThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.EnumCardinalityThreshold = 2
	profile := NewProfiler(opts).ProfileColumn("c", strs("a", "b", "c"))
	assert.Nil(t, profile.AllowedValues)
	assert.Equal(t, 3, profile.DistinctCount)
}

func TestNewProfilerKeepsExplicitZeroes(t *testing.T) {
	p := NewProfiler(Options{EnumCardinalityThreshold: -1})
	assert.Equal(t, 1000, p.opts.MaxSamples)
	assert.Equal(t, 0.9, p.opts.Threshold)
	assert.Equal(t, 25, p.opts.EnumCardinalityThreshold)

	p = NewProfiler(Options{})
	profile := p.ProfileColumn("c", strs("yes", "no", "yes"))
	assert.Nil(t, profile.AllowedValues, "zero threshold disables allowed values")
	assert.Equal(t, sheet.TypeString, profile.InferredType, "booleans stay off")
}

func TestInferSchemaSamplesLimit(t *testing.T) {
	rows := []sheet.Row{
		{"a": sheet.NewString("1")},
		{"a": sheet.NewString("2")},
		{"a": sheet.NewString("x")},
		{"a": sheet.NewString("y")},
	}
	opts := DefaultOptions()
	opts.MaxSamples = 2

	schema, profiles := NewProfiler(opts).InferSchema(rows, []string{"a", "missing"})
	require.Len(t, schema, 2)
	assert.Equal(t, sheet.TypeNumber, schema[0].InferredType)
	assert.Equal(t, 2, profiles[0].SampleSize)
	assert.Equal(t, sheet.TypeNull, schema[1].InferredType)
}

func TestLegacyInferType(t *testing.T) {
	tests := []struct {
		name     string
		values   []sheet.Value
		expected sheet.InferredType
	}{
		{"long id among numbers stays string", strs("12", "34", "123456789"), sheet.TypeString},
		{"eight digit numbers are numbers", strs("12345678", "1"), sheet.TypeNumber},
		{"native numbers", []sheet.Value{sheet.NewNumber(1), sheet.NewNumber(2.5)}, sheet.TypeNumber},
		{"native long id", []sheet.Value{sheet.NewNumber(1), sheet.NewNumber(987654321)}, sheet.TypeString},
		{"currency", strs("€1.234,56", "$5.00"), sheet.TypeNumber},
		{"booleans", strs("yes", "No", "TRUE"), sheet.TypeBoolean},
		{"dates", strs("31/12/2024", "2024-01-01"), sheet.TypeDate},
		{"empty", strs("", "<nil>"), sheet.TypeString},
		{"text", strs("a", "1"), sheet.TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferType(tt.values))
		})
	}
}

func TestGuardIdentifiers(t *testing.T) {
	schema := []sheet.ColumnSchema{
		{ColumnName: "order", InferredType: sheet.TypeNumber},
		{ColumnName: "qty", InferredType: sheet.TypeNumber},
	}
	rows := []sheet.Row{
		{"order": sheet.NewString("100000001"), "qty": sheet.NewString("2")},
		{"order": sheet.NewString("100000002"), "qty": sheet.NewString("3")},
	}

	guarded, demoted := GuardIdentifiers(schema, rows)
	assert.Equal(t, sheet.TypeString, guarded[0].InferredType)
	assert.Equal(t, sheet.TypeNumber, guarded[1].InferredType)
	assert.Equal(t, []string{"order"}, demoted)
	assert.Equal(t, sheet.TypeNumber, schema[0].InferredType, "input schema untouched")
}
