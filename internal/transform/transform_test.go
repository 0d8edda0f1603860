package transform

import (
	"testing"
	"time"

	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/schema"
	"github.com/storepulse/storepulse/internal/table"
)

func newTestCleaner() *Cleaner {
	c := New(logging.Discard())
	c.Now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func transactions(rows ...[]string) *table.Table {
	t := table.New("transaction_id", "product_id", "total_amount", "timestamp")
	for _, r := range rows {
		t.Append(r...)
	}
	return t
}

func TestTransactions_QuarantinesNegativeAmount(t *testing.T) {
	raw := transactions(
		[]string{"T1", "P01", "120.50", "2024-01-05 10:00:00"},
		[]string{"T2", "P02", "-500", "2024-01-05 11:00:00"},
		[]string{"T3", "P03", "80", "2024-01-06 09:30:00"},
	)

	res := newTestCleaner().Transactions(raw)

	if res.Report.Quarantined != 1 {
		t.Fatalf("expected 1 quarantined row, got %d", res.Report.Quarantined)
	}
	for i := range res.Clean.Rows {
		if res.Clean.Value(i, "transaction_id") == "T2" {
			t.Error("negative amount row must not reach clean output")
		}
	}
	if res.Quarantine.Value(0, "transaction_id") != "T2" {
		t.Errorf("expected T2 in quarantine, got %v", res.Quarantine.Rows[0])
	}
	if res.Quarantine.Value(0, schema.ColumnQuarantineReason) != ReasonNegativeAmount {
		t.Errorf("unexpected reason %q", res.Quarantine.Value(0, schema.ColumnQuarantineReason))
	}
	if res.Quarantine.Value(0, schema.ColumnQuarantinedAt) != "2024-06-01T00:00:00Z" {
		t.Errorf("unexpected quarantine stamp %q", res.Quarantine.Value(0, schema.ColumnQuarantinedAt))
	}
	if raw.Len() != 3 {
		t.Error("input table must not be modified")
	}
}

func TestTransactions_AmountContract(t *testing.T) {
	tests := []struct {
		amount string
		reason string
	}{
		{"0", ""},
		{"19.99", ""},
		{"-0.01", ReasonNegativeAmount},
		{"", ReasonMissingAmount},
		{"abc", ReasonInvalidAmount},
		{"NaN", ReasonInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			if got := amountViolation(tt.amount); got != tt.reason {
				t.Errorf("amountViolation(%q) = %q, want %q", tt.amount, got, tt.reason)
			}
		})
	}
}

func TestTransactions_DedupKeepsFirstAndIsIdempotent(t *testing.T) {
	raw := transactions(
		[]string{"T1", "P01", "10", "2024-01-05 10:00:00"},
		[]string{"T1", "P09", "99", "2024-01-05 10:00:00"},
		[]string{"T2", "P02", "20", "2024-01-05 11:00:00"},
		[]string{"T1", "P01", "10", "2024-01-05 10:00:00"},
	)
	c := newTestCleaner()

	first := c.Transactions(raw)
	if first.Report.Duplicates != 2 {
		t.Fatalf("expected 2 duplicates, got %d", first.Report.Duplicates)
	}
	if first.Clean.Value(0, "product_id") != "P01" {
		t.Errorf("expected first occurrence kept, got %q", first.Clean.Value(0, "product_id"))
	}

	second := c.Transactions(first.Clean)
	if second.Report.Duplicates != 0 {
		t.Errorf("cleaning clean data removed %d duplicates", second.Report.Duplicates)
	}
	if second.Clean.Len() != first.Clean.Len() {
		t.Errorf("row count changed on second pass: %d -> %d", first.Clean.Len(), second.Clean.Len())
	}
}

func TestTransactions_CompositeDedupKey(t *testing.T) {
	raw := transactions(
		[]string{"T1", "P01", "10", ""},
		[]string{"T1", "P02", "10", ""},
		[]string{"T1", "P01", "10", ""},
	)
	c := newTestCleaner()
	c.DedupKey = []string{"transaction_id", "product_id"}

	res := c.Transactions(raw)
	if res.Clean.Len() != 2 || res.Report.Duplicates != 1 {
		t.Errorf("expected 2 rows and 1 duplicate, got %d and %d", res.Clean.Len(), res.Report.Duplicates)
	}
}

func TestTransactions_MalformedTimestampBecomesNull(t *testing.T) {
	raw := transactions(
		[]string{"T1", "P01", "10", "2024-01-05T10:00:00"},
		[]string{"T2", "P01", "10", "not a date"},
		[]string{"T3", "P01", "10", "9999-01-01 00:00:00"},
	)

	res := newTestCleaner().Transactions(raw)
	if res.Clean.Len() != 3 {
		t.Fatalf("malformed timestamps must not drop rows, got %d", res.Clean.Len())
	}
	if got := res.Clean.Value(0, "timestamp"); got != "2024-01-05 10:00:00" {
		t.Errorf("expected canonical timestamp, got %q", got)
	}
	if res.Clean.Value(1, "timestamp") != "" || res.Clean.Value(2, "timestamp") != "" {
		t.Error("unparseable timestamps should be null")
	}
	if res.Report.NullTimestamps != 2 {
		t.Errorf("expected 2 null timestamps, got %d", res.Report.NullTimestamps)
	}
}

func TestInventory_WarehouseIDRenamed(t *testing.T) {
	raw := table.New("warehouse_id", "product_id", "stock_level", "last_restocked")
	raw.Append("W-7", "P01", "15", "2024-01-01")
	raw.Append("W-8", "P02", "", "2024-01-02")

	res, err := newTestCleaner().Inventory(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := res.Clean
	if out.Has("warehouse_id") {
		t.Error("warehouse_id should not remain")
	}
	if out.Value(0, "store_id") != "W-7" || out.Value(1, "store_id") != "W-8" {
		t.Errorf("store_id should carry warehouse_id values, got %v", out.Rows)
	}
	if out.Value(1, "stock_level") != "0" || res.StockFilled != 1 {
		t.Errorf("expected missing stock filled with 0, got %q (filled %d)", out.Value(1, "stock_level"), res.StockFilled)
	}
	if !res.StoreKey.Renamed() {
		t.Error("expected resolution to report a rename")
	}
}

func TestInventory_StoreKeyPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		values  []string
		want    string
	}{
		{"store_id wins", []string{"store_id", "warehouse_id", "id"}, []string{"S1", "W1", "I1"}, "S1"},
		{"warehouse_id before id", []string{"id", "warehouse_id"}, []string{"I1", "W1"}, "W1"},
		{"id fallback", []string{"id"}, []string{"101.0"}, "101"},
		{"placeholder", []string{"product_id"}, []string{"P01"}, "WH-001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := table.New(tt.columns...)
			raw.Append(tt.values...)

			res, err := newTestCleaner().Inventory(raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := res.Clean.Value(0, "store_id"); got != tt.want {
				t.Errorf("store_id = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCoerceStock(t *testing.T) {
	tests := map[string]string{
		"12":   "12",
		"12.0": "12",
		" 7 ":  "7",
		"":     "0",
		"n/a":  "0",
	}
	for in, want := range tests {
		if got, _ := coerceStock(in); got != want {
			t.Errorf("coerceStock(%q) = %q, want %q", in, got, want)
		}
	}
}
