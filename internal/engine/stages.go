package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/storepulse/storepulse/internal/aggregate"
	"github.com/storepulse/storepulse/internal/aws"
	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/export"
	"github.com/storepulse/storepulse/internal/facts"
	"github.com/storepulse/storepulse/internal/ingest"
	"github.com/storepulse/storepulse/internal/metrics"
	"github.com/storepulse/storepulse/internal/schema"
	"github.com/storepulse/storepulse/internal/scd"
	"github.com/storepulse/storepulse/internal/state"
	"github.com/storepulse/storepulse/internal/table"
	"github.com/storepulse/storepulse/internal/target"
	"github.com/storepulse/storepulse/internal/transform"
	"github.com/storepulse/storepulse/internal/validation"
)

type source struct {
	raw      string
	bronze   string
	contract schema.Contract
	amount   string
}

func sources() []source {
	return []source{
		{raw: TableRawTransactions, bronze: TableBronzeTransactions, contract: schema.RawTransactions, amount: transform.ColumnAmount},
		{raw: TableRawInventory, bronze: TableBronzeInventory, contract: schema.RawInventory},
	}
}

// Ingest reads every raw source with retries and writes the bronze tables.
func (e *Engine) Ingest(ctx context.Context) (*StageResult, error) {
	res := newStageResult()
	v := ingest.New(e.Logger)
	v.Now = e.now

	for _, src := range sources() {
		out, err := v.Ingest(ctx, ingest.Options{
			Source:       e.Path(src.raw),
			Contract:     src.contract,
			MaxAttempts:  e.Config.Ingestion.MaxAttempts,
			Backoff:      e.Config.Ingestion.Backoff,
			AmountColumn: src.amount,
		})
		if err != nil {
			return res, err
		}
		e.Metrics.Retries(src.raw, out.Attempts-1)
		e.Metrics.Rows(string(state.StageIngest), src.bronze, metrics.RowsRead, out.Table.Len())
		res.Counts[src.raw+"_rows"] = out.Table.Len()
		if out.NegativeAmounts > 0 {
			res.Counts["negative_amounts"] += out.NegativeAmounts
		}
		if n := len(out.Drift.Extra) + len(out.Drift.Missing); n > 0 {
			res.Counts["drift_columns"] += n
		}
		if err := e.writeTable(src.bronze, out.Table, res); err != nil {
			return res, err
		}
		e.Metrics.Rows(string(state.StageIngest), src.bronze, metrics.RowsWritten, out.Table.Len())
	}
	return res, nil
}

func (e *Engine) cleaner() *transform.Cleaner {
	c := transform.New(e.Logger)
	c.Now = e.now
	c.DedupKey = e.Config.Cleaning.DedupKey
	c.StoreKey = schema.Alias{
		Canonical:   schema.StoreKey.Canonical,
		Candidates:  e.Config.Cleaning.StoreKeyAliases,
		Placeholder: e.Config.Cleaning.PlaceholderStoreID,
	}
	return c
}

// Clean applies the cleaning contracts to the bronze tables and writes
// the silver tables and the quarantine.
func (e *Engine) Clean() (*StageResult, error) {
	res := newStageResult()
	stage := string(state.StageClean)

	bronzeTx, err := facts.ReadInput(e.Path(TableBronzeTransactions))
	if err != nil {
		return res, err
	}
	bronzeInv, err := facts.ReadInput(e.Path(TableBronzeInventory))
	if err != nil {
		return res, err
	}

	c := e.cleaner()
	tx := c.Transactions(bronzeTx)
	res.Counts["input"] = tx.Report.Input
	res.Counts["duplicates"] = tx.Report.Duplicates
	res.Counts["quarantined"] = tx.Report.Quarantined
	res.Counts["null_timestamps"] = tx.Report.NullTimestamps
	res.Counts["output"] = tx.Report.Output
	e.Metrics.Rows(stage, TableSilverTransactions, metrics.RowsRead, tx.Report.Input)
	e.Metrics.Rows(stage, TableSilverTransactions, metrics.RowsDuplicate, tx.Report.Duplicates)
	e.Metrics.Rows(stage, TableQuarantine, metrics.RowsQuarantined, tx.Report.Quarantined)

	inv, err := c.Inventory(bronzeInv)
	if err != nil {
		return res, err
	}
	res.Counts["stock_filled"] = inv.StockFilled

	if err := e.writeTable(TableSilverTransactions, tx.Clean, res); err != nil {
		return res, err
	}
	if err := e.writeTable(TableQuarantine, tx.Quarantine, res); err != nil {
		return res, err
	}
	if err := e.writeTable(TableSilverInventory, inv.Clean, res); err != nil {
		return res, err
	}
	e.Metrics.Rows(stage, TableSilverTransactions, metrics.RowsWritten, tx.Clean.Len())
	e.Metrics.Rows(stage, TableSilverInventory, metrics.RowsWritten, inv.Clean.Len())
	return res, nil
}

// BuildFacts derives the fact tables from the silver tables.
func (e *Engine) BuildFacts() (*StageResult, error) {
	res := newStageResult()
	b := facts.New(e.Logger)

	sales, err := facts.ReadInput(e.Path(TableSilverTransactions))
	if err != nil {
		return res, err
	}
	inv, err := facts.ReadInput(e.Path(TableSilverInventory))
	if err != nil {
		return res, err
	}

	factSales, err := b.Sales(sales)
	if err != nil {
		return res, err
	}
	factInv, err := b.Inventory(inv)
	if err != nil {
		return res, err
	}
	if err := e.writeTable(TableFactSales, factSales, res); err != nil {
		return res, err
	}
	if err := e.writeTable(TableFactInventory, factInv, res); err != nil {
		return res, err
	}
	for _, t := range res.Tables {
		e.Metrics.Rows(string(state.StageFacts), t.Name, metrics.RowsWritten, t.Rows)
	}
	return res, nil
}

func (e *Engine) tracker() *scd.Tracker {
	tr := scd.New(e.Logger)
	tr.Now = e.now
	tr.KeyColumn = e.Config.SCD.KeyColumn
	tr.Attributes = e.Config.SCD.TrackedAttributes
	tr.EffectiveColumn = e.Config.SCD.EffectiveColumn
	return tr
}

// TrackHistory applies the customer update batch to the SCD2 history. A
// missing update batch is an empty one.
func (e *Engine) TrackHistory() (*StageResult, error) {
	res := newStageResult()

	updates, err := table.Read(e.Path(TableCustomerUpdates))
	switch {
	case errors.Is(err, table.ErrNotFound):
		e.Logger.Info("no customer updates found", "stage", "scd")
		updates = nil
	case err != nil:
		return res, err
	}

	path := e.Path(TableCustomerHistory)
	sum, err := e.tracker().Sync(path, updates)
	if err != nil {
		return res, err
	}
	res.Counts["inserted"] = sum.Inserted
	res.Counts["versioned"] = sum.Versioned
	res.Counts["unchanged"] = sum.Unchanged
	res.Counts["rejected"] = sum.Rejected
	res.table(TableCustomerHistory, path, sum.Rows)
	e.Metrics.Rows(string(state.StageSCD), TableCustomerHistory, metrics.RowsRejected, sum.Rejected)
	if sum.Changed() {
		e.Metrics.Rows(string(state.StageSCD), TableCustomerHistory, metrics.RowsWritten, sum.Rows)
	}
	return res, nil
}

// Aggregate computes and writes the gold tables. The product dimension is
// optional.
func (e *Engine) Aggregate(ctx context.Context) (*StageResult, error) {
	res := newStageResult()

	sales, err := facts.ReadInput(e.Path(TableFactSales))
	if err != nil {
		return res, err
	}
	inv, err := facts.ReadInput(e.Path(TableFactInventory))
	if err != nil {
		return res, err
	}
	products, err := table.Read(e.Path(TableProducts))
	switch {
	case errors.Is(err, table.ErrNotFound):
		e.Logger.Warn("product dimension missing, names and categories will be null", "stage", "aggregate")
		products = nil
	case err != nil:
		return res, err
	}

	agg := &aggregate.Engine{
		Logger:        e.Logger,
		Workers:       e.Config.Aggregation.Workers,
		CriticalStock: e.Config.Aggregation.CriticalStockThreshold,
		MaxBasket:     e.Config.Aggregation.MaxBasketSize,
		Write: func(name string, t *table.Table) error {
			return table.Write(e.Path(name), t)
		},
	}
	outputs, err := agg.Run(ctx, aggregate.Inputs{Sales: sales, Inventory: inv, Products: products})
	if err != nil {
		return res, err
	}
	for _, o := range outputs {
		res.table(o.Name, e.Path(o.Name), o.Rows)
		res.Counts[o.Name] = o.Rows
		e.Metrics.Rows(string(state.StageAggregate), o.Name, metrics.RowsWritten, o.Rows)
	}
	return res, nil
}

// Export writes the fact tables as partitioned Parquet and mirrors them to
// S3 when a bucket is configured. It is skipped unless enabled.
func (e *Engine) Export(ctx context.Context) (*StageResult, error) {
	cfg := e.Config.Export
	if !cfg.Enabled {
		return nil, errSkipped
	}
	res := newStageResult()

	exp := &export.Exporter{Logger: e.Logger, Directory: config.ExpandHome(cfg.Directory)}
	if cfg.S3Bucket != "" {
		client := e.S3
		if client == nil {
			rc, err := aws.NewRealClient(ctx, cfg.Profile, cfg.Region)
			if err != nil {
				return res, err
			}
			client = rc
		}
		exp.Uploader = aws.NewLakeUploader(client, cfg.S3Bucket, cfg.S3Prefix)
	}

	for _, spec := range []export.Spec{export.FactSales, export.FactInventory} {
		t, err := facts.ReadInput(e.Path(spec.Name))
		if err != nil {
			return res, err
		}
		out, err := exp.Export(ctx, spec, t)
		if err != nil {
			return res, err
		}
		res.table(spec.Name, out.Directory, out.Rows)
		res.Counts[spec.Name+"_partitions"] = out.Partitions
		e.Metrics.Rows(string(state.StageExport), spec.Name, metrics.RowsWritten, out.Rows)
	}
	return res, nil
}

// OwnedTables lists the tables the engine produces, in publish order.
func OwnedTables() []string {
	names := []string{TableFactSales, TableFactInventory, TableCustomerHistory}
	return append(names, aggregate.Tables()...)
}

// OpenSinks connects to every publish sink in the config.
func (e *Engine) OpenSinks(ctx context.Context) ([]target.Sink, error) {
	var sinks []target.Sink
	pub := e.Config.Publish
	if pub.Postgres.DSN != "" {
		pg, err := target.NewPostgresSink(ctx, pub.Postgres.DSN, pub.Postgres.Schema)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	if pub.MongoDB.ConnectionString != "" {
		mg, err := target.NewMongoSink(ctx, pub.MongoDB.ConnectionString, pub.MongoDB.Database)
		if err != nil {
			CloseSinks(ctx, sinks)
			return nil, err
		}
		sinks = append(sinks, mg)
	}
	return sinks, nil
}

// CloseSinks closes every sink, ignoring errors.
func CloseSinks(ctx context.Context, sinks []target.Sink) {
	for _, s := range sinks {
		_ = s.Close(ctx)
	}
}

// Publish replaces every engine-owned table in each sink. It is skipped
// when no sink is configured.
func (e *Engine) Publish(ctx context.Context, sinks []target.Sink) (*StageResult, error) {
	if len(sinks) == 0 {
		return nil, errSkipped
	}
	res := newStageResult()

	var tables []target.NamedTable
	for _, name := range OwnedTables() {
		t, err := facts.ReadInput(e.Path(name))
		if err != nil {
			return res, err
		}
		tables = append(tables, target.NamedTable{Name: name, Table: t})
	}

	results, err := target.Publish(ctx, e.Logger, sinks, tables)
	for _, r := range results {
		res.Counts[r.Sink+"_tables"]++
		e.Metrics.Rows(string(state.StagePublish), r.Table, metrics.RowsWritten, int(r.Rows))
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

// ValidateHistory checks the SCD2 history table without modifying it.
func (e *Engine) ValidateHistory() (*validation.Result, error) {
	t, err := facts.ReadInput(e.Path(TableCustomerHistory))
	if err != nil {
		return nil, err
	}
	v := &validation.Validator{
		KeyColumn: e.Config.SCD.KeyColumn,
		Callback: func(check string, passed bool) {
			if passed {
				e.Logger.Info("check passed", "stage", "validate", "check", check)
				return
			}
			e.Logger.Warn("check failed", "stage", "validate", "check", check)
		},
	}
	res, err := v.Validate(t)
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", TableCustomerHistory, err)
	}
	return res, nil
}
