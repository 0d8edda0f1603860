package transform

import (
	"strings"
	"time"
)

// CanonicalTimestamp is the layout every parsed timestamp is rewritten to.
const CanonicalTimestamp = "2006-01-02 15:04:05"

// Years outside this window cannot be represented downstream and are
// treated as malformed.
const (
	minYear = 1678
	maxYear = 2261
)

// timestampLayouts are tried in order. Slash dates are month-first.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006",
	"20060102",
}

// ParseTimestamp parses a timestamp written in any supported layout.
// Offsets are converted to UTC and the result has no zone. ok is false
// for empty, malformed, or out-of-range input.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		ts = ts.UTC()
		if ts.Year() < minYear || ts.Year() > maxYear {
			return time.Time{}, false
		}
		return ts, true
	}
	return time.Time{}, false
}

// NormalizeTimestamp rewrites s in CanonicalTimestamp form, or returns the
// null value when s cannot be parsed.
func NormalizeTimestamp(s string) string {
	ts, ok := ParseTimestamp(s)
	if !ok {
		return ""
	}
	return ts.Format(CanonicalTimestamp)
}
