package facts

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/schema"
	"github.com/storepulse/storepulse/internal/table"
)

func TestSales_DerivesDateKeys(t *testing.T) {
	clean := table.New("transaction_id", "store_id", "product_id", "customer_id", "quantity",
		"total_amount", "payment_mode", "timestamp", "ingested_at", "is_negative_amount")
	clean.Append("T1", "S1", "P01", "C001", "2", "40", "UPI", "2024-03-09 14:05:00", "x", "false")
	clean.Append("T2", "S1", "P02", "C002", "1", "15", "Cash", "", "x", "false")

	out, err := New(logging.Discard()).Sales(clean)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(out.Columns, ","); got != strings.Join(schema.FactSales.Columns, ",") {
		t.Errorf("unexpected columns %s", got)
	}
	if out.Len() != 2 {
		t.Fatalf("expected both rows retained, got %d", out.Len())
	}
	if out.Value(0, "sale_date") != "2024-03-09" || out.Value(0, "sale_year") != "2024" || out.Value(0, "sale_month") != "3" {
		t.Errorf("unexpected keys %v", out.Rows[0])
	}
	for _, c := range []string{"sale_date", "sale_year", "sale_month"} {
		if out.Value(1, c) != "" {
			t.Errorf("expected null %s for invalid timestamp, got %q", c, out.Value(1, c))
		}
	}
}

func TestInventory_DerivesDateKeys(t *testing.T) {
	clean := table.New("store_id", "product_id", "stock_level", "last_restocked")
	clean.Append("S1", "P01", "12", "2024-02-29")
	clean.Append("S1", "P02", "0", "garbage")

	out, err := New(logging.Discard()).Inventory(clean)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Value(0, "inventory_date") != "2024-02-29" || out.Value(0, "inventory_month") != "2" {
		t.Errorf("unexpected keys %v", out.Rows[0])
	}
	if out.Value(1, "last_restocked") != "garbage" || out.Value(1, "inventory_year") != "" {
		t.Errorf("invalid date should keep source value and null keys, got %v", out.Rows[1])
	}
}

func TestMissingInput(t *testing.T) {
	b := New(logging.Discard())
	if _, err := b.Sales(nil); !errors.Is(err, ErrMissingInput) {
		t.Errorf("Sales(nil): expected ErrMissingInput, got %v", err)
	}
	if _, err := b.Inventory(nil); !errors.Is(err, ErrMissingInput) {
		t.Errorf("Inventory(nil): expected ErrMissingInput, got %v", err)
	}

	_, err := ReadInput(filepath.Join(t.TempDir(), "silver_pos_transactions.csv"))
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("ReadInput: expected ErrMissingInput, got %v", err)
	}
}

func TestSales_MissingColumnIsError(t *testing.T) {
	clean := table.New("transaction_id", "timestamp")
	clean.Append("T1", "2024-01-01 00:00:00")

	if _, err := New(logging.Discard()).Sales(clean); err == nil {
		t.Error("expected projection error for missing fact columns")
	}
}
