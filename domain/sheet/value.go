package sheet

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sheetflow/domain/core"
)

// Kind is the storage kind of a cell value
type Kind string

const (
	KindNull    Kind = "null"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindDate    Kind = "date"
)

// Value is a single cell: a tagged union over the scalar kinds a sheet can hold.
// The zero Value is null.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

// Null returns the null value
func Null() Value {
	return Value{Kind: KindNull}
}

// NewString creates a string value
func NewString(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// NewNumber creates a numeric value
func NewNumber(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

// NewBoolean creates a boolean value
func NewBoolean(b bool) Value {
	return Value{Kind: KindBoolean, Bool: b}
}

// NewDate creates a date value normalized to UTC
func NewDate(t time.Time) Value {
	return Value{Kind: KindDate, Time: t.UTC()}
}

// FromAny converts a decoded JSON scalar or Go scalar into a Value.
// Unknown composite types are rendered with %v and kept as strings.
func FromAny(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case string:
		return NewString(v)
	case bool:
		return NewBoolean(v)
	case float64:
		return NewNumber(v)
	case float32:
		return NewNumber(float64(v))
	case int:
		return NewNumber(float64(v))
	case int64:
		return NewNumber(float64(v))
	case int32:
		return NewNumber(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return NewNumber(f)
		}
		return NewString(v.String())
	case time.Time:
		return NewDate(v)
	default:
		return NewString(fmt.Sprintf("%v", v))
	}
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.Kind == "" || v.Kind == KindNull
}

// IsBlank reports whether the value is null or a whitespace-only string
func (v Value) IsBlank() bool {
	if v.IsNull() {
		return true
	}
	return v.Kind == KindString && strings.TrimSpace(v.Str) == ""
}

// Text returns the display form of the value. Null renders as "".
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return FormatNumber(v.Num)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		return core.FormatISO(v.Time)
	}
	return ""
}

// String implements fmt.Stringer
func (v Value) String() string {
	if v.IsNull() {
		return "<null>"
	}
	return v.Text()
}

// Interface returns the plain Go scalar for the value (nil, string, float64, bool).
// Dates are returned as ISO strings, matching their persisted form.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBoolean:
		return v.Bool
	case KindDate:
		return core.FormatISO(v.Time)
	}
	return nil
}

// Equal reports whether two values have the same kind and content
func (v Value) Equal(o Value) bool {
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindBoolean:
		return v.Bool == o.Bool
	case KindDate:
		return v.Time.Equal(o.Time)
	}
	return v.Str == o.Str
}

// Fingerprint is a JSON encoding used to dedupe values by content
func (v Value) Fingerprint() string {
	b, err := json.Marshal(v)
	if err != nil {
		return string(v.Kind) + ":" + v.Text()
	}
	return string(b)
}

// MarshalJSON encodes the value as a bare JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.Num)
	case KindString, KindBoolean, KindDate:
		return json.Marshal(v.Interface())
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a bare JSON scalar. Date values come back as strings;
// callers that know a column is a date re-coerce them.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FormatNumber renders a float the shortest way that round-trips
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
