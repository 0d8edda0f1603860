package aggregate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/table"
)

var salesColumns = []string{
	"transaction_id", "store_id", "product_id", "customer_id", "quantity",
	"total_amount", "sale_date", "sale_year", "sale_month",
}

func sales(rows ...[]string) *table.Table {
	t := table.New(salesColumns...)
	for _, r := range rows {
		t.Append(r...)
	}
	return t
}

func sampleSales() *table.Table {
	return sales(
		[]string{"T1", "S1", "P01", "C001", "2", "100", "2024-01-05", "2024", "1"},
		[]string{"T1", "S1", "P02", "C001", "1", "50", "2024-01-05", "2024", "1"},
		[]string{"T2", "S2", "P02", "C002", "3", "75.5", "2024-02-10", "2024", "2"},
		[]string{"T2", "S2", "P03", "C002", "1", "20", "2024-02-10", "2024", "2"},
		[]string{"T3", "S1", "P01", "C001", "1", "30", "2023-12-31", "2023", "12"},
		[]string{"T4", "S2", "P04", "", "5", "10", "", "", ""},
	)
}

func products() *table.Table {
	t := table.New("product_id", "product_name", "category", "price", "supplier")
	t.Append("P01", "Tea", "Beverages", "5", "Acme")
	t.Append("P02", "Milk", "Dairy", "2", "Acme")
	t.Append("P03", "Bread", "Bakery", "3", "Acme")
	return t
}

func rows(t *table.Table) string {
	lines := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		lines[i] = strings.Join(r, ",")
	}
	return strings.Join(lines, "\n")
}

func TestRevenueRollups(t *testing.T) {
	s := sampleSales()

	daily := DailyRevenue(s)
	if got, want := strings.Join(daily.Columns, ","), "Date,Total_Revenue"; got != want {
		t.Errorf("daily columns = %s", got)
	}
	if got, want := rows(daily), "2023-12-31,30\n2024-01-05,150\n2024-02-10,95.5"; got != want {
		t.Errorf("daily rows:\n%s\nwant:\n%s", got, want)
	}

	monthly := MonthlyRevenue(s)
	if got, want := rows(monthly), "2023,12,30\n2024,1,150\n2024,2,95.5"; got != want {
		t.Errorf("monthly rows:\n%s\nwant:\n%s", got, want)
	}

	seasonal := SeasonalTrend(s)
	if got, want := rows(seasonal), "1,3\n2,4\n12,1"; got != want {
		t.Errorf("seasonal rows:\n%s\nwant:\n%s", got, want)
	}

	stores := StoreSales(s)
	if got, want := rows(stores), "S1,180\nS2,105.5"; got != want {
		t.Errorf("store rows:\n%s\nwant:\n%s", got, want)
	}
}

func TestTopProducts_StableTies(t *testing.T) {
	s := sales(
		[]string{"T1", "S1", "P03", "C1", "2", "1", "", "", ""},
		[]string{"T2", "S1", "P01", "C1", "2", "1", "", "", ""},
		[]string{"T3", "S1", "P09", "C1", "7", "1", "", "", ""},
		[]string{"T4", "S1", "P02", "C1", "2", "1", "", "", ""},
	)

	got := rows(TopProducts(s, products()))
	want := "P09,7,\nP01,2,Tea\nP02,2,Milk\nP03,2,Bread"
	if got != want {
		t.Errorf("top products:\n%s\nwant:\n%s", got, want)
	}
}

func TestProductLookup_PaddedIDs(t *testing.T) {
	padded := table.New("product_id", "product_name", "category", "price", "supplier")
	padded.Append(" P01 ", "Tea", "Beverages", "5", "Acme")
	padded.Append("P02", "Milk", "Dairy", "2", "Acme")

	s := sales(
		[]string{"T1", "S1", "P01", "C1", "3", "1", "", "", ""},
		[]string{"T2", "S1", " P02", "C1", "1", "1", "", "", ""},
	)
	if got, want := rows(TopProducts(s, padded)), "P01,3,Tea\nP02,1,Milk"; got != want {
		t.Errorf("top products:\n%s\nwant:\n%s", got, want)
	}

	inv := table.New("store_id", "product_id", "stock_level")
	inv.Append("S1", "P02 ", "50")
	out := InventoryHealth(inv, padded, 20)
	if got := out.Value(0, "product_name"); got != "Milk" {
		t.Errorf("inventory product_name = %q, want Milk", got)
	}
}

func TestInventoryHealth(t *testing.T) {
	inv := table.New("store_id", "product_id", "stock_level")
	inv.Append("S1", "P01", "19")
	inv.Append("S1", "P02", "20")
	inv.Append("S1", "P99", "0")

	out := InventoryHealth(inv, products(), 20)
	if got, want := strings.Join(out.Columns, ","), "store_id,product_id,stock_level,product_name,category,status"; got != want {
		t.Errorf("columns = %s", got)
	}
	for i, want := range []string{StatusCritical, StatusHealthy, StatusCritical} {
		if got := out.Value(i, "status"); got != want {
			t.Errorf("row %d status = %s, want %s", i, got, want)
		}
	}
	if out.Value(2, "product_name") != "" {
		t.Error("unmatched product should have null name")
	}

	if got := InventoryHealth(inv, products(), 10).Value(0, "status"); got != StatusHealthy {
		t.Errorf("threshold should be configurable, got %s", got)
	}
}

func TestCustomerMetrics_SingleOrderIsNew(t *testing.T) {
	got := rows(CustomerMetrics(sampleSales()))
	want := "C001,180,2,Returning\nC002,95.5,1,New"
	if got != want {
		t.Errorf("customer metrics:\n%s\nwant:\n%s", got, want)
	}
}

func TestMarketBasket_Scenario(t *testing.T) {
	s := sales(
		[]string{"T1", "S1", "P01", "C1", "1", "1", "", "", ""},
		[]string{"T1", "S1", "P02", "C1", "1", "1", "", "", ""},
		[]string{"T2", "S1", "P02", "C1", "1", "1", "", "", ""},
		[]string{"T2", "S1", "P03", "C1", "1", "1", "", "", ""},
	)

	out, stats := MarketBasket(s, 0)
	if got, want := rows(out), "P01,P02,1\nP02,P03,1"; got != want {
		t.Errorf("basket:\n%s\nwant:\n%s", got, want)
	}
	if stats.Transactions != 2 || stats.Largest != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMarketBasket_Symmetry(t *testing.T) {
	s := sales(
		[]string{"T1", "S1", "B", "C1", "1", "1", "", "", ""},
		[]string{"T1", "S1", "A", "C1", "1", "1", "", "", ""},
		[]string{"T1", "S1", "A", "C1", "1", "1", "", "", ""},
		[]string{"T2", "S1", "A", "C1", "1", "1", "", "", ""},
		[]string{"T2", "S1", "B", "C1", "1", "1", "", "", ""},
		[]string{"T3", "S1", "C", "C1", "1", "1", "", "", ""},
	)

	out, _ := MarketBasket(s, 0)
	if out.Len() != 1 {
		t.Fatalf("expected one pair, got:\n%s", rows(out))
	}
	if got := rows(out); got != "A,B,2" {
		t.Errorf("expected A,B,2 got %s", got)
	}
}

func TestMarketBasket_SizeLimit(t *testing.T) {
	s := sales(
		[]string{"T1", "S1", "P01", "C1", "1", "1", "", "", ""},
		[]string{"T1", "S1", "P02", "C1", "1", "1", "", "", ""},
		[]string{"T1", "S1", "P03", "C1", "1", "1", "", "", ""},
		[]string{"T2", "S1", "P01", "C1", "1", "1", "", "", ""},
		[]string{"T2", "S1", "P02", "C1", "1", "1", "", "", ""},
	)

	out, stats := MarketBasket(s, 2)
	if stats.Skipped != 1 {
		t.Errorf("expected 1 skipped basket, got %d", stats.Skipped)
	}
	if got := rows(out); got != "P01,P02,1" {
		t.Errorf("unexpected pairs %s", got)
	}
}

func TestInventoryTurnover(t *testing.T) {
	inv := table.New("stock_level")
	inv.Append("10")
	inv.Append("30")

	if got := InventoryTurnover(sampleSales(), inv).Value(0, "value"); got != "0.65" {
		t.Errorf("turnover = %s, want 0.65", got)
	}

	zero := table.New("stock_level")
	zero.Append("0")
	zero.Append("0")
	out := InventoryTurnover(sampleSales(), zero)
	if out.Value(0, "metric") != TurnoverMetric || out.Value(0, "value") != "0" {
		t.Errorf("zero stock should yield 0, got %v", out.Rows[0])
	}

	if got := InventoryTurnover(sampleSales(), table.New("stock_level")).Value(0, "value"); got != "0" {
		t.Errorf("no inventory should yield 0, got %s", got)
	}
}

func TestEngine_WritesEveryTable(t *testing.T) {
	var mu sync.Mutex
	written := make(map[string]*table.Table)
	e := &Engine{
		Logger:  logging.Discard(),
		Workers: 3,
		Write: func(name string, t *table.Table) error {
			mu.Lock()
			defer mu.Unlock()
			written[name] = t
			return nil
		},
	}

	inv := table.New("store_id", "product_id", "stock_level")
	inv.Append("S1", "P01", "5")

	out, err := e.Run(context.Background(), Inputs{Sales: sampleSales(), Inventory: inv})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(Tables()) || len(written) != len(Tables()) {
		t.Fatalf("expected %d outputs, got %d (written %d)", len(Tables()), len(out), len(written))
	}
	for i, name := range Tables() {
		if out[i].Name != name || out[i].Rows != written[name].Len() {
			t.Errorf("output %d = %+v", i, out[i])
		}
	}
	if written[TableInventoryHealth].Value(0, "status") != StatusCritical {
		t.Error("default threshold should apply when unset")
	}
}

func TestEngine_WriteError(t *testing.T) {
	boom := errors.New("disk full")
	e := &Engine{
		Logger:  logging.Discard(),
		Workers: 2,
		Write: func(name string, t *table.Table) error {
			if name == TableMarketBasket {
				return boom
			}
			return nil
		},
	}

	_, err := e.Run(context.Background(), Inputs{Sales: sampleSales(), Inventory: table.New("stock_level")})
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
}
