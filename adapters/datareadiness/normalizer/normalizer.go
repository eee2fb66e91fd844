// Package normalizer turns a raw cell grid into clean, unique headers and
// header-keyed rows.
package normalizer

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"sheetflow/domain/sheet"
)

// PlaceholderHeader names columns whose header cell is blank. Repeats go
// through the same suffix rule as every other header, so the second blank
// column is col_1, not col_2: numbering blanks by position would put names
// like col_2 in the space the duplicate suffixes use.
const PlaceholderHeader = "col"

// Options controls normalization
type Options struct {
	EmptyStringAsNull bool // blank cells become null
	DropEmptyRows     bool // rows with every value blank are dropped
	MachineSafe       bool // lower-case ASCII identifiers instead of display names
}

// DefaultOptions returns the standard normalization options
func DefaultOptions() Options {
	return Options{
		EmptyStringAsNull: true,
		DropEmptyRows:     true,
	}
}

// Table is the header row and the data rows below it, cut to the used width
type Table struct {
	Header []sheet.Value
	Data   sheet.RawMatrix
}

// Result is a normalized sheet
type Result struct {
	Headers       []string    `json:"headers"`
	SourceHeaders []string    `json:"source_headers"` // raw header text per column
	Rows          []sheet.Row `json:"rows"`
}

// Extract selects the 1-based header row and trims trailing columns that are
// blank in the header and in every data row. Rows above the header are ignored.
// Data rows are padded or cut to the table width. The input is not modified.
func Extract(raw sheet.RawMatrix, headerRow int) Table {
	if headerRow < 1 {
		headerRow = 1
	}
	if headerRow > len(raw) {
		return Table{}
	}

	header := raw[headerRow-1]
	body := raw[headerRow:]

	width := lastUsedColumn(header) + 1
	for _, row := range body {
		if w := lastUsedColumn(row) + 1; w > width {
			width = w
		}
	}

	t := Table{
		Header: fitRow(header, width),
		Data:   make(sheet.RawMatrix, len(body)),
	}
	for i, row := range body {
		t.Data[i] = fitRow(row, width)
	}
	return t
}

func lastUsedColumn(row []sheet.Value) int {
	for i := len(row) - 1; i >= 0; i-- {
		if !row[i].IsBlank() {
			return i
		}
	}
	return -1
}

func fitRow(row []sheet.Value, width int) []sheet.Value {
	out := make([]sheet.Value, width)
	for i := 0; i < width; i++ {
		if i < len(row) {
			out[i] = row[i]
		} else {
			out[i] = sheet.Null()
		}
	}
	return out
}

// NormalizeHeaders sanitizes raw header cells into non-empty, pairwise unique
// names of the same length. Duplicates get numeric suffixes: name, name_1, name_2.
func NormalizeHeaders(raw []sheet.Value, machineSafe bool) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	counts := make(map[string]int, len(raw))

	for i, cell := range raw {
		base := DisplayName(cell.Text())
		if machineSafe {
			base = MachineName(cell.Text())
		}
		if base == "" {
			base = PlaceholderHeader
		}

		name := base
		for used[name] {
			counts[base]++
			name = base + "_" + strconv.Itoa(counts[base])
		}
		used[name] = true
		out[i] = name
	}

	return out
}

// DisplayName trims, collapses inner whitespace and joins words with underscores
func DisplayName(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// MachineName lower-cases s, strips accents, turns separators into underscores
// and drops everything that is not [a-z0-9_].
func MachineName(s string) string {
	folded, _, err := transform.String(stripMarks, strings.TrimSpace(s))
	if err != nil {
		folded = strings.TrimSpace(s)
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	lastUnderscore := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r) || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';' || r == '_':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	return strings.Trim(b.String(), "_")
}

// MapRows keys every data row by the headers. Missing cells become null and,
// with EmptyStringAsNull, so do blank strings. All-blank rows are dropped when
// DropEmptyRows is set.
func MapRows(headers []string, data sheet.RawMatrix, opts Options) []sheet.Row {
	rows := make([]sheet.Row, 0, len(data))
	for _, cells := range data {
		row := make(sheet.Row, len(headers))
		empty := true
		for j, name := range headers {
			v := sheet.Null()
			if j < len(cells) {
				v = cells[j]
			}
			if v.IsBlank() {
				if opts.EmptyStringAsNull {
					v = sheet.Null()
				}
			} else {
				empty = false
			}
			row[name] = v
		}
		if empty && opts.DropEmptyRows {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// Normalize runs Extract, NormalizeHeaders and MapRows in sequence.
// Malformed input never fails: missing headers get placeholder names.
func Normalize(raw sheet.RawMatrix, headerRow int, opts Options) Result {
	t := Extract(raw, headerRow)
	headers := NormalizeHeaders(t.Header, opts.MachineSafe)
	return Result{
		Headers:       headers,
		SourceHeaders: SourceHeaders(t.Header),
		Rows:          MapRows(headers, t.Data, opts),
	}
}

// SourceHeaders returns the trimmed raw header text of each column
func SourceHeaders(header []sheet.Value) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h.Text())
	}
	return out
}
