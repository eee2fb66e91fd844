// Package profiler infers column types and statistics from sampled rows.
package profiler

import (
	"sheetflow/adapters/datareadiness/coercer"
	"sheetflow/domain/sheet"
	"sheetflow/internal/profiling"
)

const (
	maxExamples      = 5
	legacySampleSize = 50
)

// Options tunes schema inference
type Options struct {
	MaxSamples               int     `json:"max_samples"`
	EnumCardinalityThreshold int     `json:"enum_cardinality_threshold"`
	StringAsBoolean          bool    `json:"string_as_boolean"` // treat yes/no style words as booleans
	Threshold                float64 `json:"threshold"`         // share of non-null samples a type needs
}

// DefaultOptions returns the standard inference options
func DefaultOptions() Options {
	return Options{
		MaxSamples:               1000,
		EnumCardinalityThreshold: 25,
		StringAsBoolean:          true,
		Threshold:                0.9,
	}
}

// ColumnProfile holds the statistics gathered while inferring one column
type ColumnProfile struct {
	ColumnName    string                    `json:"column_name"`
	InferredType  sheet.InferredType        `json:"inferred_type"`
	SampleSize    int                       `json:"sample_size"`
	NullCount     int                       `json:"null_count"`
	NumberCount   int                       `json:"number_count"`
	BooleanCount  int                       `json:"boolean_count"`
	DateCount     int                       `json:"date_count"`
	StringCount   int                       `json:"string_count"`
	DistinctCount int                       `json:"distinct_count"`
	Examples      []sheet.Value             `json:"examples"`
	AllowedValues []sheet.Value             `json:"allowed_values,omitempty"`
	Numeric       *profiling.NumericSummary `json:"numeric,omitempty"`
}

// Profiler infers column schemas
type Profiler struct {
	opts Options
}

// NewProfiler creates a profiler. Unset MaxSamples, an out-of-range Threshold
// and a negative EnumCardinalityThreshold take their defaults. A zero
// EnumCardinalityThreshold turns allowed-value detection off and
// StringAsBoolean is used as given; start from DefaultOptions to get both on.
func NewProfiler(opts Options) *Profiler {
	def := DefaultOptions()
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = def.MaxSamples
	}
	if opts.EnumCardinalityThreshold < 0 {
		opts.EnumCardinalityThreshold = def.EnumCardinalityThreshold
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = def.Threshold
	}
	return &Profiler{opts: opts}
}

// InferSchema profiles every column in headers over the first MaxSamples rows
func (p *Profiler) InferSchema(rows []sheet.Row, headers []string) ([]sheet.ColumnSchema, []ColumnProfile) {
	sample := rows
	if len(sample) > p.opts.MaxSamples {
		sample = sample[:p.opts.MaxSamples]
	}

	schema := make([]sheet.ColumnSchema, len(headers))
	profiles := make([]ColumnProfile, len(headers))
	for i, name := range headers {
		values := make([]sheet.Value, len(sample))
		for j, row := range sample {
			values[j] = row.Get(name)
		}
		profile := p.ProfileColumn(name, values)
		profiles[i] = profile
		schema[i] = sheet.ColumnSchema{
			ColumnName:    name,
			InferredType:  profile.InferredType,
			AllowedValues: profile.AllowedValues,
		}
	}
	return schema, profiles
}

// ProfileColumn classifies already-sampled values. Each non-blank value is
// tested against every type independently, so "0" counts as both number and
// boolean; a value matching none counts as string.
func (p *Profiler) ProfileColumn(name string, values []sheet.Value) ColumnProfile {
	profile := ColumnProfile{
		ColumnName: name,
		SampleSize: len(values),
	}

	seen := make(map[string]bool)
	var distinct []sheet.Value
	var numbers []float64

	for _, v := range values {
		if v.IsBlank() {
			profile.NullCount++
			continue
		}

		matched := false
		if coercer.IsNumericLike(v) {
			profile.NumberCount++
			matched = true
			if n, ok := numericValue(v); ok {
				numbers = append(numbers, n)
			}
		}
		if p.isBooleanLike(v) {
			profile.BooleanCount++
			matched = true
		}
		if coercer.IsDateLike(v) {
			profile.DateCount++
			matched = true
		}
		if !matched {
			profile.StringCount++
		}

		fp := v.Fingerprint()
		if !seen[fp] {
			seen[fp] = true
			distinct = append(distinct, v)
		}
	}

	profile.DistinctCount = len(distinct)
	if len(distinct) > maxExamples {
		profile.Examples = distinct[:maxExamples]
	} else {
		profile.Examples = distinct
	}
	if profile.DistinctCount > 0 && profile.DistinctCount <= p.opts.EnumCardinalityThreshold {
		profile.AllowedValues = distinct
	}

	profile.InferredType = p.decideType(profile)
	if profile.InferredType == sheet.TypeNumber {
		// summary is informational; a stats failure leaves it empty
		profile.Numeric, _ = profiling.Summarize(numbers)
	}
	return profile
}

func (p *Profiler) isBooleanLike(v sheet.Value) bool {
	if v.Kind == sheet.KindBoolean {
		return true
	}
	return p.opts.StringAsBoolean && coercer.IsBooleanLike(v)
}

// decideType applies the ratio thresholds against non-null samples, in order
// number, boolean, date, string; otherwise null (all blank) or mixed.
func (p *Profiler) decideType(profile ColumnProfile) sheet.InferredType {
	if profile.SampleSize == 0 {
		return sheet.TypeUnknown
	}
	nonNull := profile.SampleSize - profile.NullCount
	if nonNull == 0 {
		return sheet.TypeNull
	}

	ratio := func(n int) float64 { return float64(n) / float64(nonNull) }
	switch {
	case ratio(profile.NumberCount) >= p.opts.Threshold:
		return sheet.TypeNumber
	case ratio(profile.BooleanCount) >= p.opts.Threshold:
		return sheet.TypeBoolean
	case ratio(profile.DateCount) >= p.opts.Threshold:
		return sheet.TypeDate
	case ratio(profile.StringCount) >= p.opts.Threshold:
		return sheet.TypeString
	}
	return sheet.TypeMixed
}

func numericValue(v sheet.Value) (float64, bool) {
	if v.Kind == sheet.KindNumber {
		return v.Num, true
	}
	return coercer.ParseNumber(v.Str)
}

// InferType is the four-type inference persisted column types were built on.
// It looks at the first 50 non-blank values and keeps long integer-like values
// (nine or more digits, no decimals) as string so identifiers survive intact.
func InferType(values []sheet.Value) sheet.InferredType {
	sample := make([]sheet.Value, 0, legacySampleSize)
	for _, v := range values {
		if v.IsBlank() {
			continue
		}
		sample = append(sample, v)
		if len(sample) == legacySampleSize {
			break
		}
	}
	if len(sample) == 0 {
		return sheet.TypeString
	}

	hasLongInt := false
	for _, v := range sample {
		if coercer.IsLongIntegerLike(v) {
			hasLongInt = true
			break
		}
	}

	if !hasLongInt && all(sample, func(v sheet.Value) bool { return v.Kind == sheet.KindNumber }) {
		return sheet.TypeNumber
	}
	if all(sample, coercer.IsBooleanLike) {
		return sheet.TypeBoolean
	}
	if all(sample, func(v sheet.Value) bool { return v.Kind == sheet.KindString && coercer.IsDateLike(v) }) {
		return sheet.TypeDate
	}
	if !hasLongInt && all(sample, coercer.IsLooselyNumeric) {
		return sheet.TypeNumber
	}
	return sheet.TypeString
}

// GuardIdentifiers demotes number columns holding long integer-like values to
// string, the same rule InferType applies, so identifiers are never coerced.
// It returns a new schema and the names of the demoted columns.
func GuardIdentifiers(schema []sheet.ColumnSchema, rows []sheet.Row) ([]sheet.ColumnSchema, []string) {
	out := make([]sheet.ColumnSchema, len(schema))
	copy(out, schema)

	var demoted []string
	for i, col := range out {
		if col.InferredType != sheet.TypeNumber {
			continue
		}
		for _, row := range rows {
			if coercer.IsLongIntegerLike(row.Get(col.ColumnName)) {
				out[i].InferredType = sheet.TypeString
				demoted = append(demoted, col.ColumnName)
				break
			}
		}
	}
	return out, demoted
}

func all(values []sheet.Value, pred func(sheet.Value) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}
