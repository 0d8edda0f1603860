package schema

// Contract names the columns a table is expected to carry.
type Contract struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

// Raw inputs produced upstream.
var (
	RawTransactions = Contract{
		Name: "pos_transactions",
		Columns: []string{
			"transaction_id", "store_id", "product_id", "quantity",
			"total_amount", "payment_mode", "timestamp", "customer_id",
		},
	}

	// RawInventory deliberately omits the store key: it arrives under one of
	// several names and is resolved by StoreKey during cleaning.
	RawInventory = Contract{
		Name:    "warehouse",
		Columns: []string{"product_id", "stock_level", "last_restocked"},
	}

	Products = Contract{
		Name:    "dim_products",
		Columns: []string{"product_id", "product_name", "category", "price", "supplier"},
	}
)

// Engine-owned fact tables.
var (
	FactSales = Contract{
		Name: "fact_sales",
		Columns: []string{
			"transaction_id", "store_id", "product_id", "customer_id",
			"quantity", "total_amount", "payment_mode", "sale_timestamp",
			"sale_date", "sale_year", "sale_month",
		},
	}

	FactInventory = Contract{
		Name: "fact_inventory",
		Columns: []string{
			"store_id", "product_id", "stock_level", "last_restocked",
			"inventory_date", "inventory_year", "inventory_month",
		},
	}
)

// Lineage and contract columns added by ingestion.
const (
	ColumnIngestedAt       = "ingested_at"
	ColumnNegativeAmount   = "is_negative_amount"
	ColumnQuarantineReason = "quarantine_reason"
	ColumnQuarantinedAt    = "quarantined_at"
)

// Drift describes how a table's columns differ from its contract.
type Drift struct {
	Extra   []string `yaml:"extra,omitempty"`
	Missing []string `yaml:"missing,omitempty"`
}

// None reports whether the columns match the contract exactly as a set.
func (d Drift) None() bool {
	return len(d.Extra) == 0 && len(d.Missing) == 0
}

// Diff compares actual columns against expected ones. Extra columns keep
// their input order and missing columns keep contract order.
func Diff(actual, expected []string) Drift {
	want := make(map[string]bool, len(expected))
	for _, c := range expected {
		want[c] = true
	}
	have := make(map[string]bool, len(actual))
	for _, c := range actual {
		have[c] = true
	}

	var d Drift
	for _, c := range actual {
		if !want[c] {
			d.Extra = append(d.Extra, c)
		}
	}
	for _, c := range expected {
		if !have[c] {
			d.Missing = append(d.Missing, c)
		}
	}
	return d
}
