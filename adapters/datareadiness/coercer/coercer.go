package coercer

import (
	"fmt"
	"strings"

	"sheetflow/domain/sheet"
)

// Options tunes coercion
type Options struct {
	DayFirst    bool `json:"day_first"`    // D/M/Y before M/D/Y for ambiguous dates
	TrimStrings bool `json:"trim_strings"` // trim string cells
}

// DefaultOptions returns day-first, trimming coercion
func DefaultOptions() Options {
	return Options{
		DayFirst:    true,
		TrimStrings: true,
	}
}

// TypeCoercer converts raw cell values into their column type
type TypeCoercer struct {
	opts Options
}

// NewTypeCoercer creates a coercer with the given options
func NewTypeCoercer(opts Options) *TypeCoercer {
	return &TypeCoercer{opts: opts}
}

// Options returns the coercer's options
func (c *TypeCoercer) Options() Options {
	return c.opts
}

// Coerce converts value to target. Blank input is null and never fails.
// On failure it returns null and ok=false; it never panics.
func (c *TypeCoercer) Coerce(value sheet.Value, target sheet.InferredType) (sheet.Value, bool) {
	if value.IsBlank() {
		return sheet.Null(), true
	}

	switch target {
	case sheet.TypeNumber:
		return c.toNumber(value)
	case sheet.TypeBoolean:
		return c.toBoolean(value)
	case sheet.TypeDate:
		return c.toDate(value)
	case sheet.TypeString:
		return c.toString(value), true
	}

	// null, mixed and unknown columns keep whatever the cell holds
	if value.Kind == sheet.KindString && c.opts.TrimStrings {
		return sheet.NewString(strings.TrimSpace(value.Str)), true
	}
	return value, true
}

func (c *TypeCoercer) toNumber(value sheet.Value) (sheet.Value, bool) {
	switch value.Kind {
	case sheet.KindNumber:
		return value, true
	case sheet.KindString:
		if n, ok := ParseNumber(value.Str); ok {
			return sheet.NewNumber(n), true
		}
	}
	return sheet.Null(), false
}

func (c *TypeCoercer) toBoolean(value sheet.Value) (sheet.Value, bool) {
	switch value.Kind {
	case sheet.KindBoolean:
		return value, true
	case sheet.KindNumber:
		if value.Num == 1 {
			return sheet.NewBoolean(true), true
		}
		if value.Num == 0 {
			return sheet.NewBoolean(false), true
		}
	case sheet.KindString:
		if b, ok := ParseBoolean(value.Str); ok {
			return sheet.NewBoolean(b), true
		}
	}
	return sheet.Null(), false
}

func (c *TypeCoercer) toDate(value sheet.Value) (sheet.Value, bool) {
	switch value.Kind {
	case sheet.KindDate:
		return value, true
	case sheet.KindString:
		if t, ok := ParseDate(value.Str, c.opts.DayFirst); ok {
			return sheet.NewDate(t), true
		}
	}
	// numeric serials are not dates here: sources deliver display strings
	return sheet.Null(), false
}

func (c *TypeCoercer) toString(value sheet.Value) sheet.Value {
	s := value.Text()
	if c.opts.TrimStrings {
		s = strings.TrimSpace(s)
	}
	return sheet.NewString(s)
}

// CoerceRowsToSchema coerces every schema column of every row, returning new
// rows and exactly one issue per non-blank value that failed to coerce.
// Columns not in the schema and reserved keys are copied through.
func (c *TypeCoercer) CoerceRowsToSchema(rows []sheet.Row, schema []sheet.ColumnSchema) ([]sheet.Row, []sheet.Issue) {
	out := make([]sheet.Row, len(rows))
	var issues []sheet.Issue

	for i, row := range rows {
		next := row.Clone()
		for _, col := range schema {
			original := row.Get(col.ColumnName)
			coerced, ok := c.Coerce(original, col.InferredType)
			next[col.ColumnName] = coerced
			if !ok {
				issues = append(issues, failureIssue(i, col, original))
			}
		}
		out[i] = next
	}

	return out, issues
}

func failureIssue(rowIndex int, col sheet.ColumnSchema, original sheet.Value) sheet.Issue {
	code := sheet.CodeNumberInvalid
	switch col.InferredType {
	case sheet.TypeBoolean:
		code = sheet.CodeBooleanInvalid
	case sheet.TypeDate:
		code = sheet.CodeDateInvalid
	}
	return sheet.Issue{
		RowIndex:      rowIndex,
		ColumnName:    col.ColumnName,
		OriginalValue: original,
		TargetType:    col.InferredType,
		Message:       fmt.Sprintf("%s invalid: %q", col.InferredType, original.Text()),
		Level:         sheet.LevelError,
		Code:          code,
	}
}
