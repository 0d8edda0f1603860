// Package transform implements the cleaning contracts applied to raw
// transactions and inventory snapshots.
package transform

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/storepulse/storepulse/internal/schema"
	"github.com/storepulse/storepulse/internal/table"
)

// Quarantine reasons.
const (
	ReasonNegativeAmount = "negative_amount"
	ReasonMissingAmount  = "missing_amount"
	ReasonInvalidAmount  = "invalid_amount"
)

// Transaction columns the cleaner relies on.
const (
	ColumnAmount    = "total_amount"
	ColumnTimestamp = "timestamp"
	ColumnStock     = "stock_level"
)

// Report counts what transaction cleaning did.
type Report struct {
	Input          int `json:"input" yaml:"input"`
	Duplicates     int `json:"duplicates" yaml:"duplicates"`
	Quarantined    int `json:"quarantined" yaml:"quarantined"`
	NullTimestamps int `json:"null_timestamps" yaml:"null_timestamps"`
	Output         int `json:"output" yaml:"output"`
}

// TransactionResult holds the clean rows and the rows routed to quarantine.
type TransactionResult struct {
	Clean      *table.Table
	Quarantine *table.Table
	Report     Report
}

// InventoryResult holds the cleaned inventory snapshot.
type InventoryResult struct {
	Clean       *table.Table
	StockFilled int
	StoreKey    schema.Resolution
}

// Cleaner applies the transaction and inventory contracts.
type Cleaner struct {
	Logger   *slog.Logger
	DedupKey []string
	StoreKey schema.Alias
	Now      func() time.Time
}

// New returns a Cleaner with the default dedup key and store key aliases.
func New(logger *slog.Logger) *Cleaner {
	return &Cleaner{
		Logger:   logger,
		DedupKey: []string{"transaction_id"},
		StoreKey: schema.StoreKey,
		Now:      time.Now,
	}
}

// Transactions deduplicates t by the dedup key keeping the first
// occurrence, moves rows violating the amount contract to quarantine, and
// rewrites timestamps in canonical form. The input is not modified.
func (c *Cleaner) Transactions(t *table.Table) *TransactionResult {
	log := c.Logger.With("stage", "clean", "table", "transactions")
	in := t.Clone()
	for _, col := range append(append([]string(nil), c.DedupKey...), ColumnAmount, ColumnTimestamp) {
		if in.AddColumn(col, "") {
			log.Warn("column missing, treating values as null", "column", col)
		}
	}

	res := &TransactionResult{
		Clean:      in.Empty(),
		Quarantine: in.Empty(),
	}
	res.Report.Input = in.Len()
	res.Quarantine.AddColumn(schema.ColumnQuarantineReason, "")
	res.Quarantine.AddColumn(schema.ColumnQuarantinedAt, "")
	stamp := c.Now().UTC().Format(time.RFC3339)

	keyIdx := make([]int, len(c.DedupKey))
	for i, col := range c.DedupKey {
		keyIdx[i] = in.Index(col)
	}
	amountIdx := in.Index(ColumnAmount)
	tsIdx := in.Index(ColumnTimestamp)

	seen := make(map[string]bool, in.Len())
	parts := make([]string, len(keyIdx))
	for _, row := range in.Rows {
		for i, idx := range keyIdx {
			parts[i] = row[idx]
		}
		if len(parts) > 0 {
			key := strings.Join(parts, "\x00")
			if seen[key] {
				res.Report.Duplicates++
				continue
			}
			seen[key] = true
		}

		if reason := amountViolation(row[amountIdx]); reason != "" {
			q := make([]string, 0, len(row)+2)
			q = append(q, row...)
			q = append(q, reason, stamp)
			res.Quarantine.Rows = append(res.Quarantine.Rows, q)
			continue
		}

		out := append([]string(nil), row...)
		if out[tsIdx] != "" {
			out[tsIdx] = NormalizeTimestamp(out[tsIdx])
			if out[tsIdx] == "" {
				res.Report.NullTimestamps++
			}
		}
		res.Clean.Rows = append(res.Clean.Rows, out)
	}

	res.Report.Quarantined = res.Quarantine.Len()
	res.Report.Output = res.Clean.Len()

	log.Info("removed duplicate rows", "key", c.DedupKey, "rows", res.Report.Duplicates)
	if res.Report.Quarantined > 0 {
		log.Warn("quarantined rows violating the amount contract", "rows", res.Report.Quarantined)
	}
	if res.Report.NullTimestamps > 0 {
		log.Warn("unparseable timestamps set to null", "rows", res.Report.NullTimestamps)
	}
	log.Info("transactions cleaned", "input", res.Report.Input, "output", res.Report.Output)
	return res
}

func amountViolation(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ReasonMissingAmount
	}
	amount, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(amount) {
		return ReasonInvalidAmount
	}
	if amount < 0 {
		return ReasonNegativeAmount
	}
	return ""
}

// Inventory fills and coerces stock levels and resolves the store key
// alias chain. The input is not modified.
func (c *Cleaner) Inventory(t *table.Table) (*InventoryResult, error) {
	log := c.Logger.With("stage", "clean", "table", "inventory")
	out := t.Clone()
	log.Debug("inventory columns", "columns", out.Columns)

	res := &InventoryResult{Clean: out}
	if out.AddColumn(ColumnStock, "0") {
		res.StockFilled = out.Len()
	} else {
		for i := range out.Rows {
			v, filled := coerceStock(out.Value(i, ColumnStock))
			if filled {
				res.StockFilled++
			}
			out.Set(i, ColumnStock, v)
		}
	}
	if res.StockFilled > 0 {
		log.Info("filled missing stock levels with 0", "rows", res.StockFilled)
	}

	resolution, err := c.StoreKey.Resolve(out)
	if err != nil {
		return nil, err
	}
	res.StoreKey = resolution
	switch {
	case resolution.Synthesized:
		log.Warn("store key not found, using placeholder", "column", resolution.Canonical, "value", c.StoreKey.Placeholder)
	case resolution.Renamed():
		log.Info("renamed store key", "from", resolution.Source, "to", resolution.Canonical)
	}

	for i := range out.Rows {
		out.Set(i, resolution.Canonical, coerceKey(out.Value(i, resolution.Canonical)))
	}

	log.Info("inventory cleaned", "rows", out.Len())
	return res, nil
}

// coerceStock returns the integer form of a stock level. Null and
// unparseable values become 0 and are reported as filled.
func coerceStock(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "0", true
	}
	return strconv.FormatInt(int64(f), 10), false
}

// coerceKey renders an identifier as a plain string. Integral numbers
// that arrived as floats ("101.0") lose their fraction.
func coerceKey(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasSuffix(v, ".0") {
		if n, err := strconv.ParseInt(strings.TrimSuffix(v, ".0"), 10, 64); err == nil {
			return strconv.FormatInt(n, 10)
		}
	}
	return v
}
