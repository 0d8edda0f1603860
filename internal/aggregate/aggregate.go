// Package aggregate computes the KPI tables derived from the fact tables.
// Every function is a pure reduction over its inputs.
package aggregate

import (
	"sort"
	"strings"

	"github.com/storepulse/storepulse/internal/table"
)

// Inventory status labels.
const (
	StatusCritical = "CRITICAL"
	StatusHealthy  = "Healthy"
)

// Customer segments.
const (
	CustomerNew       = "New"
	CustomerReturning = "Returning"
)

// DefaultCriticalStock is the stock level below which inventory is critical.
const DefaultCriticalStock = 20

// TurnoverMetric labels the single row of the turnover table.
const TurnoverMetric = "Inventory Turnover Ratio"

// DailyRevenue sums total_amount by sale_date.
func DailyRevenue(sales *table.Table) *table.Table {
	return sumTable(sales, "total_amount", []string{"sale_date"}, []string{"Date", "Total_Revenue"})
}

// MonthlyRevenue sums total_amount by sale_year and sale_month.
func MonthlyRevenue(sales *table.Table) *table.Table {
	return sumTable(sales, "total_amount", []string{"sale_year", "sale_month"}, []string{"year", "month", "total_amount"})
}

// StoreSales sums total_amount by store_id.
func StoreSales(sales *table.Table) *table.Table {
	return sumTable(sales, "total_amount", []string{"store_id"}, []string{"store_id", "total_amount"})
}

// SeasonalTrend sums quantity by calendar month regardless of year.
func SeasonalTrend(sales *table.Table) *table.Table {
	return sumTable(sales, "quantity", []string{"sale_month"}, []string{"Month", "Total_Quantity_Sold"})
}

func sumTable(t *table.Table, valueCol string, keyCols, outCols []string) *table.Table {
	g := sumBy(t, valueCol, keyCols...)
	out := table.New(outCols...)
	for _, k := range g.keys() {
		row := append(append([]string(nil), g.parts[k]...), formatNumber(g.sums[k]))
		out.Rows = append(out.Rows, row)
	}
	return out
}

// TopProducts sums quantity by product, attaches the product name and
// sorts by quantity descending. Equal quantities keep product order.
func TopProducts(sales, products *table.Table) *table.Table {
	g := sumBy(sales, "quantity", "product_id")
	keys := g.keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return g.sums[keys[i]] > g.sums[keys[j]]
	})

	names := lookup(products, "product_id")
	out := table.New("product_id", "quantity", "product_name")
	for _, k := range keys {
		id := g.parts[k][0]
		name := ""
		if i, ok := names[id]; ok {
			name = products.Value(i, "product_name")
		}
		out.Append(id, formatNumber(g.sums[k]), name)
	}
	return out
}

// InventoryHealth left-joins inventory to the product dimension and
// classifies each row as CRITICAL when stock_level is below threshold.
// Rows with an unparseable stock level are Healthy.
func InventoryHealth(inventory, products *table.Table, threshold int) *table.Table {
	cols := append([]string(nil), inventory.Columns...)
	for _, c := range []string{"product_name", "category", "status"} {
		if !inventory.Has(c) {
			cols = append(cols, c)
		}
	}
	out := table.New(cols...)
	byID := lookup(products, "product_id")

	for i := range inventory.Rows {
		rec := inventory.Record(i)
		if p, ok := byID[strings.TrimSpace(rec["product_id"])]; ok {
			rec["product_name"] = products.Value(p, "product_name")
			rec["category"] = products.Value(p, "category")
		} else {
			rec["product_name"], rec["category"] = "", ""
		}
		rec["status"] = StatusHealthy
		if stock, ok := parseNumber(rec["stock_level"]); ok && stock < float64(threshold) {
			rec["status"] = StatusCritical
		}
		out.AppendMap(rec)
	}
	return out
}

// CustomerMetrics computes spend and distinct order count per customer.
// A customer with exactly one order is New, more than one is Returning.
func CustomerMetrics(sales *table.Table) *table.Table {
	spent := sumBy(sales, "total_amount", "customer_id")
	orders := make(map[string]map[string]bool)
	if sales.Has("customer_id") && sales.Has("transaction_id") {
		for i := range sales.Rows {
			c := strings.TrimSpace(sales.Value(i, "customer_id"))
			tx := sales.Value(i, "transaction_id")
			if c == "" {
				continue
			}
			if orders[c] == nil {
				orders[c] = make(map[string]bool)
			}
			if tx != "" {
				orders[c][tx] = true
			}
		}
	}

	out := table.New("customer_id", "total_spent", "total_orders", "customer_type")
	for _, k := range spent.keys() {
		id := spent.parts[k][0]
		n := len(orders[id])
		kind := CustomerNew
		if n > 1 {
			kind = CustomerReturning
		}
		out.Append(id, formatNumber(spent.sums[k]), formatNumber(float64(n)), kind)
	}
	return out
}

// BasketStats describes the market basket computation.
type BasketStats struct {
	Transactions int
	Largest      int
	Skipped      int // baskets over the size limit
}

// MarketBasket counts, for every unordered pair of distinct products, the
// number of transactions containing both. Pairs are keyed in lexicographic
// order so (A,B) and (B,A) are one pair. Work is quadratic in basket size;
// baskets larger than maxBasket are skipped when maxBasket > 0.
func MarketBasket(sales *table.Table, maxBasket int) (*table.Table, BasketStats) {
	var stats BasketStats
	out := table.New("product_1", "product_2", "frequency")
	if !sales.Has("transaction_id") || !sales.Has("product_id") {
		return out, stats
	}

	baskets := make(map[string]map[string]bool)
	var order []string
	for i := range sales.Rows {
		tx := sales.Value(i, "transaction_id")
		p := strings.TrimSpace(sales.Value(i, "product_id"))
		if tx == "" || p == "" {
			continue
		}
		if baskets[tx] == nil {
			baskets[tx] = make(map[string]bool)
			order = append(order, tx)
		}
		baskets[tx][p] = true
	}
	stats.Transactions = len(order)

	type pair struct{ a, b string }
	counts := make(map[pair]int)
	for _, tx := range order {
		set := baskets[tx]
		if len(set) > stats.Largest {
			stats.Largest = len(set)
		}
		if maxBasket > 0 && len(set) > maxBasket {
			stats.Skipped++
			continue
		}
		items := make([]string, 0, len(set))
		for p := range set {
			items = append(items, p)
		}
		sort.Strings(items)
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				counts[pair{items[i], items[j]}]++
			}
		}
	}

	pairs := make([]pair, 0, len(counts))
	for p := range counts {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		ci, cj := counts[pairs[i]], counts[pairs[j]]
		if ci != cj {
			return ci > cj
		}
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
	for _, p := range pairs {
		out.Append(p.a, p.b, formatNumber(float64(counts[p])))
	}
	return out, stats
}

// InventoryTurnover divides total quantity sold by mean stock level. The
// ratio is 0 when there is no stock or no inventory rows.
func InventoryTurnover(sales, inventory *table.Table) *table.Table {
	sold := 0.0
	for i := range sales.Rows {
		if q, ok := parseNumber(sales.Value(i, "quantity")); ok {
			sold += q
		}
	}

	var total float64
	var n int
	for i := range inventory.Rows {
		if s, ok := parseNumber(inventory.Value(i, "stock_level")); ok {
			total += s
			n++
		}
	}

	ratio := 0.0
	if n > 0 {
		if mean := total / float64(n); mean != 0 {
			ratio = sold / mean
		}
	}

	out := table.New("metric", "value")
	out.Append(TurnoverMetric, formatNumber(ratio))
	return out
}
