// Package facts projects cleaned records onto fixed-grain fact tables.
package facts

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/storepulse/storepulse/internal/schema"
	"github.com/storepulse/storepulse/internal/table"
	"github.com/storepulse/storepulse/internal/transform"
)

// ErrMissingInput is returned when a required upstream table is absent.
// By the time facts are built this indicates a stage ordering problem, so
// it is never retried.
var ErrMissingInput = errors.New("required input table missing")

// ReadInput loads a required upstream table.
func ReadInput(path string) (*table.Table, error) {
	t, err := table.Read(path)
	if errors.Is(err, table.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	return t, err
}

// Builder derives the fact tables.
type Builder struct {
	Logger *slog.Logger
}

// New creates a Builder.
func New(logger *slog.Logger) *Builder {
	return &Builder{Logger: logger}
}

// Sales builds fact_sales from cleaned transactions. Rows whose timestamp
// cannot be parsed are kept with null date keys.
func (b *Builder) Sales(clean *table.Table) (*table.Table, error) {
	if clean == nil {
		return nil, fmt.Errorf("%w: cleaned transactions", ErrMissingInput)
	}
	src := clean.Clone()
	if err := src.Rename("timestamp", "sale_timestamp"); err != nil && !src.Has("sale_timestamp") {
		return nil, fmt.Errorf("building fact_sales: %w", err)
	}
	for i := range src.Rows {
		src.Set(i, "sale_timestamp", transform.NormalizeTimestamp(src.Value(i, "sale_timestamp")))
	}
	nulls := derive(src, "sale_timestamp", "sale")

	out, err := src.Project(schema.FactSales.Columns...)
	if err != nil {
		return nil, fmt.Errorf("building fact_sales: %w", err)
	}
	b.log(schema.FactSales.Name, out.Len(), nulls)
	return out, nil
}

// Inventory builds fact_inventory from cleaned inventory, deriving date
// keys from last_restocked.
func (b *Builder) Inventory(clean *table.Table) (*table.Table, error) {
	if clean == nil {
		return nil, fmt.Errorf("%w: cleaned inventory", ErrMissingInput)
	}
	src := clean.Clone()
	src.AddColumn("last_restocked", "")
	nulls := derive(src, "last_restocked", "inventory")

	out, err := src.Project(schema.FactInventory.Columns...)
	if err != nil {
		return nil, fmt.Errorf("building fact_inventory: %w", err)
	}
	b.log(schema.FactInventory.Name, out.Len(), nulls)
	return out, nil
}

func (b *Builder) log(name string, rows, nulls int) {
	log := b.Logger.With("stage", "facts", "table", name)
	if nulls > 0 {
		log.Warn("rows with invalid dates kept with null partition keys", "rows", nulls)
	}
	log.Info("fact table built", "rows", rows)
}

// derive adds <prefix>_date, <prefix>_year and <prefix>_month computed from
// the timestamp column and returns how many rows got null keys.
func derive(t *table.Table, col, prefix string) int {
	dateCol, yearCol, monthCol := prefix+"_date", prefix+"_year", prefix+"_month"
	for _, c := range []string{dateCol, yearCol, monthCol} {
		t.Drop(c)
		t.AddColumn(c, "")
	}

	nulls := 0
	for i := range t.Rows {
		ts, ok := transform.ParseTimestamp(t.Value(i, col))
		if !ok {
			nulls++
			continue
		}
		t.Set(i, dateCol, ts.Format("2006-01-02"))
		t.Set(i, yearCol, strconv.Itoa(ts.Year()))
		t.Set(i, monthCol, strconv.Itoa(int(ts.Month())))
	}
	return nulls
}
