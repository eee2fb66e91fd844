// Package validator re-checks typed rows against their declared schema and
// aggregates the findings into quality statistics.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"sheetflow/adapters/datareadiness/coercer"
	"sheetflow/domain/sheet"
)

// booleanWords are the values a boolean column may hold without a warning
var booleanWords = map[string]bool{
	"true": true, "false": true, "boolean": true,
	"0": true, "1": true,
	"yes": true, "no": true, "y": true, "n": true,
}

// Options tunes validation
type Options struct {
	DayFirst  bool `json:"day_first"`
	MaxIssues int  `json:"max_issues"` // 0 keeps every issue
}

// DefaultOptions returns day-first validation with no issue cap
func DefaultOptions() Options {
	return Options{DayFirst: true}
}

// Validator checks rows against a schema
type Validator struct {
	opts Options
}

// NewValidator creates a validator
func NewValidator(opts Options) *Validator {
	return &Validator{opts: opts}
}

// Validate returns the issues found in rows. headers fixes the column order of
// the scan; columns missing from schema are only checked for required values.
func (v *Validator) Validate(rows []sheet.Row, headers []string, schema []sheet.ColumnSchema, required []string) []sheet.Issue {
	types := make(map[string]sheet.InferredType, len(schema))
	for _, col := range schema {
		types[col.ColumnName] = col.InferredType
	}
	isRequired := make(map[string]bool, len(required))
	for _, name := range required {
		isRequired[name] = true
	}

	var issues []sheet.Issue
	for i, row := range rows {
		for _, name := range headers {
			value := row.Get(name)
			if value.IsBlank() {
				if isRequired[name] {
					issues = append(issues, sheet.Issue{
						RowIndex:      i,
						ColumnName:    name,
						OriginalValue: value,
						TargetType:    types[name],
						Message:       fmt.Sprintf("%s is required", name),
						Level:         sheet.LevelError,
						Code:          sheet.CodeRequiredMissing,
					})
				}
			} else if issue, ok := v.checkType(i, name, types[name], value); ok {
				issues = append(issues, issue)
			}

			if v.opts.MaxIssues > 0 && len(issues) >= v.opts.MaxIssues {
				return issues[:v.opts.MaxIssues]
			}
		}
	}
	return issues
}

func (v *Validator) checkType(rowIndex int, name string, target sheet.InferredType, value sheet.Value) (sheet.Issue, bool) {
	issue := sheet.Issue{
		RowIndex:      rowIndex,
		ColumnName:    name,
		OriginalValue: value,
		TargetType:    target,
	}

	switch target {
	case sheet.TypeNumber:
		if validNumber(value) {
			return sheet.Issue{}, false
		}
		issue.Level = sheet.LevelError
		issue.Code = sheet.CodeNumberInvalid
		issue.Message = fmt.Sprintf("number invalid: %q", value.Text())
	case sheet.TypeDate:
		if v.validDate(value) {
			return sheet.Issue{}, false
		}
		issue.Level = sheet.LevelError
		issue.Code = sheet.CodeDateInvalid
		issue.Message = fmt.Sprintf("date invalid: %q", value.Text())
	case sheet.TypeBoolean:
		if booleanWords[strings.ToLower(strings.TrimSpace(value.Text()))] {
			return sheet.Issue{}, false
		}
		issue.Level = sheet.LevelWarning
		issue.Code = sheet.CodeBooleanSuspect
		issue.Message = fmt.Sprintf("suspect boolean: %q", value.Text())
	default:
		return sheet.Issue{}, false
	}
	return issue, true
}

func validNumber(value sheet.Value) bool {
	switch value.Kind {
	case sheet.KindNumber:
		return true
	case sheet.KindString:
		_, ok := coercer.ParseNumber(value.Str)
		return ok
	}
	return false
}

// validDate rejects numeric spreadsheet serials; sources deliver display text.
func (v *Validator) validDate(value sheet.Value) bool {
	switch value.Kind {
	case sheet.KindDate:
		return true
	case sheet.KindString:
		_, ok := coercer.ParseDate(value.Str, v.opts.DayFirst)
		return ok
	}
	return false
}

// QualityFromIssues aggregates issues with the table shape
func QualityFromIssues(rows, columns int, issues []sheet.Issue) sheet.QualityStats {
	stats := sheet.QualityStats{
		Rows:    rows,
		Columns: columns,
		Cells:   rows * columns,
	}
	for _, issue := range issues {
		switch issue.Level {
		case sheet.LevelError:
			stats.Errors++
		case sheet.LevelWarning:
			stats.Warnings++
		}
	}
	return stats
}

// IssueCount is the number of issues sharing a code and column
type IssueCount struct {
	Code       string `json:"code"`
	ColumnName string `json:"column_name"`
	Count      int    `json:"count"`
}

// Summarize counts issues per code and column, most frequent first
func Summarize(issues []sheet.Issue) []IssueCount {
	index := make(map[[2]string]int)
	var counts []IssueCount
	for _, issue := range issues {
		key := [2]string{issue.Code, issue.ColumnName}
		if i, ok := index[key]; ok {
			counts[i].Count++
			continue
		}
		index[key] = len(counts)
		counts = append(counts, IssueCount{Code: issue.Code, ColumnName: issue.ColumnName, Count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}
