package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/storepulse/storepulse/internal/table"
)

// Output table names.
const (
	TableDailySales        = "gold_daily_sales"
	TableMonthlySales      = "gold_monthly_sales"
	TableTopProducts       = "gold_top_products"
	TableStoreSales        = "gold_store_sales"
	TableInventoryHealth   = "gold_inventory_health"
	TableCustomerMetrics   = "gold_customer_metrics"
	TableMarketBasket      = "gold_market_basket"
	TableInventoryTurnover = "gold_inventory_turnover"
	TableSeasonalTrend     = "gold_seasonal_trend"
)

// Tables lists every aggregate in output order.
func Tables() []string {
	return []string{
		TableDailySales, TableMonthlySales, TableTopProducts, TableStoreSales,
		TableInventoryHealth, TableCustomerMetrics, TableMarketBasket,
		TableInventoryTurnover, TableSeasonalTrend,
	}
}

// largeBasket is the basket size above which the quadratic pair count is
// reported even when no limit is configured.
const largeBasket = 100

// Inputs are the tables aggregates are computed from. Products may be nil.
type Inputs struct {
	Sales     *table.Table
	Inventory *table.Table
	Products  *table.Table
}

// Output records one written aggregate.
type Output struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// WriteFunc persists one aggregate table.
type WriteFunc func(name string, t *table.Table) error

// Engine computes every aggregate concurrently. Each job reads the shared
// inputs and writes a distinct output.
type Engine struct {
	Logger        *slog.Logger
	Workers       int
	CriticalStock int
	MaxBasket     int
	Write         WriteFunc
}

// Run computes and writes all aggregates. It returns the first error; the
// remaining jobs are cancelled but outputs already written stay in place.
func (e *Engine) Run(ctx context.Context, in Inputs) ([]Output, error) {
	if in.Sales == nil || in.Inventory == nil {
		return nil, fmt.Errorf("aggregate: sales and inventory facts are required")
	}
	products := in.Products
	if products == nil {
		products = table.New("product_id", "product_name", "category")
	}
	threshold := e.CriticalStock
	if threshold <= 0 {
		threshold = DefaultCriticalStock
	}
	log := e.Logger.With("stage", "aggregate")

	jobs := map[string]func() *table.Table{
		TableDailySales:   func() *table.Table { return DailyRevenue(in.Sales) },
		TableMonthlySales: func() *table.Table { return MonthlyRevenue(in.Sales) },
		TableTopProducts:  func() *table.Table { return TopProducts(in.Sales, products) },
		TableStoreSales:   func() *table.Table { return StoreSales(in.Sales) },
		TableInventoryHealth: func() *table.Table {
			return InventoryHealth(in.Inventory, products, threshold)
		},
		TableCustomerMetrics: func() *table.Table { return CustomerMetrics(in.Sales) },
		TableMarketBasket: func() *table.Table {
			t, stats := MarketBasket(in.Sales, e.MaxBasket)
			switch {
			case stats.Skipped > 0:
				log.Warn("baskets over size limit skipped", "skipped", stats.Skipped, "limit", e.MaxBasket, "largest", stats.Largest)
			case stats.Largest > largeBasket:
				log.Warn("large baskets make pair counting quadratic", "largest", stats.Largest)
			}
			return t
		},
		TableInventoryTurnover: func() *table.Table { return InventoryTurnover(in.Sales, in.Inventory) },
		TableSeasonalTrend:     func() *table.Table { return SeasonalTrend(in.Sales) },
	}

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	rows := make(map[string]int, len(jobs))
	for _, name := range Tables() {
		name := name
		job := jobs[name]
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			t := job()
			if err := e.Write(name, t); err != nil {
				return fmt.Errorf("writing %s: %w", name, err)
			}
			log.Info("aggregate written", "table", name, "rows", t.Len())
			mu.Lock()
			rows[name] = t.Len()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Output, 0, len(rows))
	for _, name := range Tables() {
		out = append(out, Output{Name: name, Rows: rows[name]})
	}
	return out, nil
}
