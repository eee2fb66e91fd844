// Package transform applies column-scoped cleanup rules to the raw matrix
// before inference and coercion.
package transform

import (
	"fmt"
	"strings"

	"sheetflow/adapters/datareadiness/coercer"
	"sheetflow/domain/core"
	"sheetflow/domain/sheet"
)

// RuleKind names a transform
type RuleKind string

const (
	RuleTrim          RuleKind = "trim"
	RuleParseCurrency RuleKind = "parseCurrency"
	RuleParseDate     RuleKind = "parseDate"
)

// Rule applies one transform to the named columns. An empty Columns list means
// every column.
type Rule struct {
	Kind    RuleKind `json:"kind"`
	Columns []string `json:"columns,omitempty"`
}

// Validate checks the rule kind
func (r Rule) Validate() error {
	switch r.Kind {
	case RuleTrim, RuleParseCurrency, RuleParseDate:
		return nil
	}
	return fmt.Errorf("unknown transform rule %q", r.Kind)
}

// ApplyRules runs rules in order over a copy of the data rows of matrix. headers
// align with the matrix columns. Cells a rule cannot handle are left as they are.
func ApplyRules(matrix sheet.RawMatrix, headers []string, rules []Rule, dayFirst bool) sheet.RawMatrix {
	out := matrix.Clone()
	for _, rule := range rules {
		cols := columnIndexes(headers, rule.Columns)
		for _, row := range out {
			for _, c := range cols {
				if c >= len(row) {
					continue
				}
				row[c] = applyCell(rule.Kind, row[c], dayFirst)
			}
		}
	}
	return out
}

func applyCell(kind RuleKind, v sheet.Value, dayFirst bool) sheet.Value {
	if v.Kind != sheet.KindString {
		return v
	}
	switch kind {
	case RuleTrim:
		return sheet.NewString(strings.TrimSpace(v.Str))
	case RuleParseCurrency:
		if n, ok := coercer.ParseNumber(v.Str); ok {
			return sheet.NewNumber(n)
		}
	case RuleParseDate:
		if t, ok := coercer.ParseDate(v.Str, dayFirst); ok {
			return sheet.NewString(core.FormatISO(t))
		}
	}
	return v
}

func columnIndexes(headers []string, columns []string) []int {
	if len(columns) == 0 {
		idx := make([]int, len(headers))
		for i := range headers {
			idx[i] = i
		}
		return idx
	}

	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		pos[h] = i
	}
	var idx []int
	for _, name := range columns {
		if i, ok := pos[name]; ok {
			idx = append(idx, i)
		}
	}
	return idx
}
