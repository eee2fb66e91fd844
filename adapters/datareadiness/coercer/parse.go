package coercer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"sheetflow/domain/core"
	"sheetflow/domain/sheet"
)

var (
	trueWords  = map[string]bool{"true": true, "1": true, "yes": true, "y": true, "si": true, "sí": true}
	falseWords = map[string]bool{"false": true, "0": true, "no": true, "n": true}

	isoPrefixPattern = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}`)
	dmyLikePattern   = regexp.MustCompile(`^\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}$`)
	dmyPattern       = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	longIntPattern   = regexp.MustCompile(`^-?\d{9,}$`)
)

// nativeLayouts are the unambiguous layouts tried before the day/month strategy.
// Slash dates are absent here; dayFirst decides their order.
var nativeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon Jan 2 2006",
}

// ParseNumber extracts a number from display text in either 1,234.56 or 1.234,56
// form. Everything except digits, '.', ',' and '-' is stripped first, so currency
// symbols and percent signs are tolerated. Whichever of '.' and ',' occurs last
// is the decimal separator and the other is a thousands separator. A separator
// that occurs more than once on its own is treated as thousands.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// Accounting negatives: (123.45) -> -123.45
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
		negative = true
	}

	var b strings.Builder
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == '.' || r == ',' || r == '-':
			b.WriteRune(r)
		}
	}
	if digits == 0 {
		return 0, false
	}
	clean := b.String()

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") > 1 {
			clean = strings.ReplaceAll(clean, ",", "")
		} else {
			clean = strings.Replace(clean, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(clean, ".") > 1 {
			clean = strings.ReplaceAll(clean, ".", "")
		}
	}

	if negative {
		clean = "-" + clean
	}

	n, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// ParseBoolean matches the accepted true/false words, case-insensitively
func ParseBoolean(s string) (bool, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if trueWords[lower] {
		return true, true
	}
	if falseWords[lower] {
		return false, true
	}
	return false, false
}

// ParseDate parses display text as a date. Unambiguous layouts are tried first;
// then D/M/Y (also '-' and '.' separated) is resolved in the dayFirst order,
// falling back to the other order when the preferred one is not a real date.
// Two-digit years are taken as 20xx. The result is always UTC.
func ParseDate(s string, dayFirst bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := core.ParseISO(s); ok {
		return t, true
	}

	for _, layout := range nativeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	m := dmyPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}
	hour, minute, second := 0, 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			second, _ = strconv.Atoi(m[6])
		}
		if hour > 23 || minute > 59 || second > 59 {
			return time.Time{}, false
		}
	}

	preferred, alt := [2]int{b, a}, [2]int{a, b} // {month, day}
	if !dayFirst {
		preferred, alt = alt, preferred
	}
	for _, md := range [][2]int{preferred, alt} {
		if t, ok := buildDate(year, md[0], md[1], hour, minute, second); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func buildDate(year, month, day, hour, minute, second int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes Feb 30 into March; reject rollovers
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// IsNumericLike is the strict inference test: finite numbers, or strings that
// parse as floats after one decimal comma is turned into a period. Any letter
// disqualifies a string.
func IsNumericLike(v sheet.Value) bool {
	switch v.Kind {
	case sheet.KindNumber:
		return !math.IsInf(v.Num, 0) && !math.IsNaN(v.Num)
	case sheet.KindString:
		s := strings.TrimSpace(v.Str)
		if s == "" || strings.IndexFunc(s, unicode.IsLetter) >= 0 {
			return false
		}
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		}
		n, err := strconv.ParseFloat(s, 64)
		return err == nil && !math.IsInf(n, 0) && !math.IsNaN(n)
	}
	return false
}

// IsBooleanLike reports whether v is a boolean or one of the boolean words
func IsBooleanLike(v sheet.Value) bool {
	switch v.Kind {
	case sheet.KindBoolean:
		return true
	case sheet.KindString:
		_, ok := ParseBoolean(v.Str)
		return ok
	}
	return false
}

// IsDateLike reports whether v looks like a date: ISO-prefixed text, D/M/Y style
// text, or text that parses natively and contains a separator (so bare numbers
// never count as dates).
func IsDateLike(v sheet.Value) bool {
	switch v.Kind {
	case sheet.KindDate:
		return true
	case sheet.KindString:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return false
		}
		if isoPrefixPattern.MatchString(s) || dmyLikePattern.MatchString(s) {
			return true
		}
		if !strings.ContainsAny(s, "-/., :") {
			return false
		}
		for _, layout := range nativeLayouts {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
	}
	return false
}

// IsLooselyNumeric accepts display numbers with currency symbols, spaces,
// thousands separators and a trailing percent sign, but no other text.
func IsLooselyNumeric(v sheet.Value) bool {
	switch v.Kind {
	case sheet.KindNumber:
		return !math.IsInf(v.Num, 0) && !math.IsNaN(v.Num)
	case sheet.KindString:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return false
		}
		for _, r := range s {
			switch {
			case r >= '0' && r <= '9', r == '.', r == ',', r == '-', r == '+', r == '%', r == '(', r == ')':
			case unicode.IsSpace(r), unicode.Is(unicode.Sc, r):
			default:
				return false
			}
		}
		_, ok := ParseNumber(s)
		return ok
	}
	return false
}

// IsLongIntegerLike flags opaque identifiers: nine or more digits with no
// decimal part. Such values stay strings so order numbers and barcodes keep
// their exact text.
func IsLongIntegerLike(v sheet.Value) bool {
	switch v.Kind {
	case sheet.KindNumber:
		return v.Num == math.Trunc(v.Num) && math.Abs(v.Num) >= 1e8
	case sheet.KindString:
		return longIntPattern.MatchString(strings.TrimSpace(v.Str))
	}
	return false
}
