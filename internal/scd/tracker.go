package scd

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/storepulse/storepulse/internal/table"
	"github.com/storepulse/storepulse/internal/transform"
)

// FromTable loads history from its tabular form. Columns other than the
// key, the tracked attributes and the bookkeeping columns are carried
// through unchanged.
func FromTable(t *table.Table, keyColumn string, attributes []string) (*History, error) {
	h := NewHistory(keyColumn, attributes)
	required := append([]string{keyColumn}, attributes...)
	for _, c := range required {
		if !t.Has(c) {
			return nil, fmt.Errorf("%w: history has no %q column", ErrMissingAttribute, c)
		}
	}

	reserved := map[string]bool{ColumnStartDate: true, ColumnEndDate: true, ColumnIsCurrent: true}
	for _, c := range required {
		reserved[c] = true
	}
	for _, c := range t.Columns {
		if !reserved[c] {
			h.addExtra(c)
		}
	}

	for i := range t.Rows {
		current, err := parseBool(t.Value(i, ColumnIsCurrent))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInconsistentHistory, i+1, err)
		}
		r := Record{
			Key:        t.Value(i, keyColumn),
			Attributes: make(map[string]string, len(attributes)),
			Extra:      make(map[string]string, len(h.Extra)),
			StartDate:  t.Value(i, ColumnStartDate),
			EndDate:    t.Value(i, ColumnEndDate),
			Current:    current,
		}
		for _, a := range attributes {
			r.Attributes[a] = t.Value(i, a)
		}
		for _, c := range h.Extra {
			r.Extra[c] = t.Value(i, c)
		}
		if err := h.add(r); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// parseBool accepts the spellings different writers produce. Null reads
// as false.
func parseBool(v string) (bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q", ColumnIsCurrent, v)
	}
	return b, nil
}

// Table renders the history as key, tracked attributes, passthrough
// columns, then start_date, end_date and is_current.
func (h *History) Table() *table.Table {
	cols := append([]string{h.KeyColumn}, h.Attributes...)
	cols = append(cols, h.Extra...)
	cols = append(cols, ColumnStartDate, ColumnEndDate, ColumnIsCurrent)

	t := table.New(cols...)
	for _, r := range h.Records {
		row := make([]string, 0, len(cols))
		row = append(row, r.Key)
		for _, a := range h.Attributes {
			row = append(row, r.Attributes[a])
		}
		for _, c := range h.Extra {
			row = append(row, r.Extra[c])
		}
		row = append(row, r.StartDate, r.EndDate, strconv.FormatBool(r.Current))
		t.Rows = append(t.Rows, row)
	}
	return t
}

// UpdatesFromTable converts incoming dimension snapshots to updates in
// input order. When the effective column is absent every update takes
// effect at fallback; an unparseable effective value marks the update
// invalid.
func UpdatesFromTable(t *table.Table, keyColumn string, attributes []string, effectiveColumn string, fallback time.Time) ([]Update, error) {
	for _, a := range attributes {
		if !t.Has(a) {
			return nil, fmt.Errorf("%w: updates have no %q column", ErrMissingAttribute, a)
		}
	}
	if !t.Has(keyColumn) {
		return nil, fmt.Errorf("updates have no %q column", keyColumn)
	}

	skip := map[string]bool{keyColumn: true}
	for _, a := range attributes {
		skip[a] = true
	}
	for _, c := range []string{ColumnStartDate, ColumnEndDate, ColumnIsCurrent} {
		skip[c] = true
	}

	updates := make([]Update, 0, t.Len())
	for i := range t.Rows {
		u := Update{
			Key:        strings.TrimSpace(t.Value(i, keyColumn)),
			Attributes: make(map[string]string, len(attributes)),
			Extra:      make(map[string]string),
			Effective:  fallback,
		}
		for _, a := range attributes {
			u.Attributes[a] = t.Value(i, a)
		}
		for _, c := range t.Columns {
			if !skip[c] {
				u.Extra[c] = t.Value(i, c)
				u.ExtraColumns = append(u.ExtraColumns, c)
			}
		}
		if t.Has(effectiveColumn) {
			raw := t.Value(i, effectiveColumn)
			ts, ok := transform.ParseTimestamp(raw)
			if ok {
				u.Effective = ts
			} else {
				u.Invalid = fmt.Sprintf("invalid %s %q", effectiveColumn, raw)
			}
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// Tracker reconciles update batches against the history file.
type Tracker struct {
	Logger          *slog.Logger
	KeyColumn       string
	Attributes      []string
	EffectiveColumn string
	Now             func() time.Time
}

// New returns a Tracker for the customer dimension.
func New(logger *slog.Logger) *Tracker {
	return &Tracker{
		Logger:          logger,
		KeyColumn:       "customer_id",
		Attributes:      []string{"city", "phone"},
		EffectiveColumn: "updated_at",
		Now:             time.Now,
	}
}

// Sync applies updates in order to the history stored at path and
// atomically replaces the file when anything changed. A missing file
// starts an empty history.
func (tr *Tracker) Sync(path string, updates *table.Table) (*Summary, error) {
	log := tr.Logger.With("stage", "scd", "table", path)

	sum := &Summary{}
	var h *History
	existing, err := table.Read(path)
	switch {
	case errors.Is(err, table.ErrNotFound):
		log.Info("no history found, starting first load")
		h = NewHistory(tr.KeyColumn, tr.Attributes)
		sum.Created = true
	case err != nil:
		return nil, fmt.Errorf("loading history: %w", err)
	default:
		h, err = FromTable(existing, tr.KeyColumn, tr.Attributes)
		if err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}
	}

	if err := tr.Apply(h, updates, sum); err != nil {
		return nil, err
	}
	sum.Rows = len(h.Records)

	if !sum.Changed() {
		log.Info("no changes, history left untouched", "rows", sum.Rows)
		return sum, nil
	}
	if err := table.Write(path, h.Table()); err != nil {
		return nil, fmt.Errorf("writing history: %w", err)
	}
	log.Info("history synced", "rows", sum.Rows, "inserted", sum.Inserted,
		"versioned", sum.Versioned, "unchanged", sum.Unchanged, "rejected", sum.Rejected)
	return sum, nil
}

// Apply reconciles an update table against h in memory.
func (tr *Tracker) Apply(h *History, updates *table.Table, sum *Summary) error {
	if updates == nil {
		return nil
	}
	list, err := UpdatesFromTable(updates, tr.KeyColumn, tr.Attributes, tr.EffectiveColumn, tr.Now())
	if err != nil {
		return err
	}

	log := tr.Logger.With("stage", "scd")
	for _, u := range list {
		before, _ := h.Current(u.Key)
		outcome, reason := h.Apply(u)
		sum.count(outcome)
		switch outcome {
		case Inserted:
			log.Info("new dimension member", "key", u.Key, "start_date", u.Effective.Format(DateLayout))
		case Versioned:
			log.Info("change detected, version closed and reopened", "key", u.Key,
				"from", before.Attributes, "to", u.Attributes, "effective", u.Effective.Format(DateLayout))
		case Unchanged:
			log.Info("no change", "key", u.Key)
		case Rejected:
			log.Warn("update rejected", "key", u.Key, "reason", reason)
		}
	}
	return nil
}
