package core

import (
	"time"
)

// ISOLayout matches the millisecond UTC form produced by JavaScript's toISOString,
// which is how dates are stored in persisted row data.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// FormatISO renders t as an ISO-8601 UTC string with millisecond precision
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseISO reads a string produced by FormatISO
func ParseISO(s string) (time.Time, bool) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
