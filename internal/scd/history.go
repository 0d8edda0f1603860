// Package scd maintains Type 2 slowly changing dimension history: every
// change to a tracked attribute closes the current version of a key and
// opens a new one.
package scd

import (
	"errors"
	"fmt"
	"time"

	"github.com/storepulse/storepulse/internal/transform"
)

// DateLayout is the on-disk form of start_date and end_date.
const DateLayout = "2006-01-02"

// History bookkeeping columns.
const (
	ColumnStartDate = "start_date"
	ColumnEndDate   = "end_date"
	ColumnIsCurrent = "is_current"
)

var (
	// ErrMissingAttribute is returned when a tracked attribute column is
	// absent from the history or the updates.
	ErrMissingAttribute = errors.New("tracked attribute missing")

	// ErrInconsistentHistory is returned when loaded history violates the
	// single-current-row invariant. It is never repaired automatically.
	ErrInconsistentHistory = errors.New("inconsistent dimension history")
)

// Record is one version of a dimension member.
type Record struct {
	Key        string
	Attributes map[string]string
	Extra      map[string]string
	StartDate  string
	EndDate    string
	Current    bool
}

// Update is an incoming snapshot of a dimension member.
type Update struct {
	Key        string
	Attributes map[string]string
	Extra      map[string]string
	Effective  time.Time

	// ExtraColumns is the input order of the Extra keys.
	ExtraColumns []string

	// Invalid is set when the update could not be parsed; it is rejected.
	Invalid string
}

// Outcome is what applying an update did to the history.
type Outcome string

const (
	Inserted  Outcome = "inserted"
	Versioned Outcome = "versioned"
	Unchanged Outcome = "unchanged"
	Rejected  Outcome = "rejected"
)

// Summary counts outcomes of a sync.
type Summary struct {
	Created   bool `json:"created" yaml:"created"`
	Inserted  int  `json:"inserted" yaml:"inserted"`
	Versioned int  `json:"versioned" yaml:"versioned"`
	Unchanged int  `json:"unchanged" yaml:"unchanged"`
	Rejected  int  `json:"rejected" yaml:"rejected"`
	Rows      int  `json:"rows" yaml:"rows"`
}

// Changed reports whether the history was modified.
func (s Summary) Changed() bool {
	return s.Created || s.Inserted > 0 || s.Versioned > 0
}

func (s *Summary) count(o Outcome) {
	switch o {
	case Inserted:
		s.Inserted++
	case Versioned:
		s.Versioned++
	case Unchanged:
		s.Unchanged++
	case Rejected:
		s.Rejected++
	}
}

// History is the full version history of a dimension.
type History struct {
	KeyColumn  string
	Attributes []string
	Extra      []string // passthrough columns, in order of first appearance
	Records    []Record

	current map[string]int
}

// NewHistory creates an empty history.
func NewHistory(keyColumn string, attributes []string) *History {
	return &History{
		KeyColumn:  keyColumn,
		Attributes: append([]string(nil), attributes...),
		current:    make(map[string]int),
	}
}

// Current returns the current version of key.
func (h *History) Current(key string) (Record, bool) {
	i, ok := h.current[key]
	if !ok {
		return Record{}, false
	}
	return h.Records[i], true
}

// Versions returns every version of key in insertion order.
func (h *History) Versions(key string) []Record {
	var out []Record
	for _, r := range h.Records {
		if r.Key == key {
			out = append(out, r)
		}
	}
	return out
}

// add appends a record, enforcing at most one current row per key.
func (h *History) add(r Record) error {
	if r.Current {
		if _, dup := h.current[r.Key]; dup {
			return fmt.Errorf("%w: %s %q has more than one current row", ErrInconsistentHistory, h.KeyColumn, r.Key)
		}
		h.current[r.Key] = len(h.Records)
	}
	h.Records = append(h.Records, r)
	return nil
}

func (h *History) addExtra(col string) {
	for _, c := range h.Extra {
		if c == col {
			return
		}
	}
	h.Extra = append(h.Extra, col)
}

// Apply reconciles one update against the history. Comparison is exact on
// every tracked attribute and a change to any of them versions the whole
// row. An update effective before the current version started is rejected.
func (h *History) Apply(u Update) (Outcome, string) {
	if u.Invalid != "" {
		return Rejected, u.Invalid
	}
	if u.Key == "" {
		return Rejected, "empty key"
	}
	effective := u.Effective.Format(DateLayout)

	i, ok := h.current[u.Key]
	if !ok {
		h.open(u, effective)
		return Inserted, ""
	}

	cur := &h.Records[i]
	if h.sameAttributes(cur.Attributes, u.Attributes) {
		return Unchanged, ""
	}
	if start, ok := transform.ParseTimestamp(cur.StartDate); ok && effective < start.Format(DateLayout) {
		return Rejected, fmt.Sprintf("effective date %s precedes current version start %s", effective, cur.StartDate)
	}

	cur.Current = false
	cur.EndDate = effective
	delete(h.current, u.Key)
	h.open(u, effective)
	return Versioned, ""
}

func (h *History) open(u Update, effective string) {
	r := Record{
		Key:        u.Key,
		Attributes: make(map[string]string, len(h.Attributes)),
		Extra:      make(map[string]string, len(u.Extra)),
		StartDate:  effective,
		Current:    true,
	}
	for _, a := range h.Attributes {
		r.Attributes[a] = u.Attributes[a]
	}
	for _, c := range u.ExtraColumns {
		r.Extra[c] = u.Extra[c]
		h.addExtra(c)
	}
	// add cannot fail: the key has no current row at this point.
	_ = h.add(r)
}

func (h *History) sameAttributes(a, b map[string]string) bool {
	for _, attr := range h.Attributes {
		if a[attr] != b[attr] {
			return false
		}
	}
	return true
}
