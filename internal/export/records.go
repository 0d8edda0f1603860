package export

import (
	"strconv"
	"strings"

	"github.com/storepulse/storepulse/internal/table"
)

// SaleRecord is the Parquet layout of a fact_sales row. Partition columns
// live in the directory path, not in the file.
type SaleRecord struct {
	TransactionID *string  `parquet:"name=transaction_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	StoreID       *string  `parquet:"name=store_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ProductID     *string  `parquet:"name=product_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CustomerID    *string  `parquet:"name=customer_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Quantity      *int64   `parquet:"name=quantity, type=INT64, repetitiontype=OPTIONAL"`
	TotalAmount   *float64 `parquet:"name=total_amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	PaymentMode   *string  `parquet:"name=payment_mode, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	SaleTimestamp *string  `parquet:"name=sale_timestamp, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	SaleDate      *string  `parquet:"name=sale_date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// InventoryRecord is the Parquet layout of a fact_inventory row.
type InventoryRecord struct {
	StoreID       *string `parquet:"name=store_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ProductID     *string `parquet:"name=product_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	StockLevel    *int64  `parquet:"name=stock_level, type=INT64, repetitiontype=OPTIONAL"`
	LastRestocked *string `parquet:"name=last_restocked, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	InventoryDate *string `parquet:"name=inventory_date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

func saleRecord(t *table.Table, i int) interface{} {
	return SaleRecord{
		TransactionID: optString(t.Value(i, "transaction_id")),
		StoreID:       optString(t.Value(i, "store_id")),
		ProductID:     optString(t.Value(i, "product_id")),
		CustomerID:    optString(t.Value(i, "customer_id")),
		Quantity:      optInt(t.Value(i, "quantity")),
		TotalAmount:   optFloat(t.Value(i, "total_amount")),
		PaymentMode:   optString(t.Value(i, "payment_mode")),
		SaleTimestamp: optString(t.Value(i, "sale_timestamp")),
		SaleDate:      optString(t.Value(i, "sale_date")),
	}
}

func inventoryRecord(t *table.Table, i int) interface{} {
	return InventoryRecord{
		StoreID:       optString(t.Value(i, "store_id")),
		ProductID:     optString(t.Value(i, "product_id")),
		StockLevel:    optInt(t.Value(i, "stock_level")),
		LastRestocked: optString(t.Value(i, "last_restocked")),
		InventoryDate: optString(t.Value(i, "inventory_date")),
	}
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func optInt(v string) *int64 {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		n := int64(f)
		return &n
	}
	return nil
}

func optFloat(v string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return &f
}
