// Package ingest reads raw upstream tables with bounded retries and
// normalizes them against a column contract.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/storepulse/storepulse/internal/schema"
	"github.com/storepulse/storepulse/internal/table"
)

// ErrIngestionFailed is returned when a source could not be read after
// every attempt.
var ErrIngestionFailed = errors.New("ingestion failed")

// ReadFunc loads a table from a location.
type ReadFunc func(path string) (*table.Table, error)

// Options describes one ingestion.
type Options struct {
	Source       string
	Contract     schema.Contract
	MaxAttempts  int
	Backoff      time.Duration
	AmountColumn string // flag negative values in this column; empty disables
}

// Result is a validated dataset and what was done to it.
type Result struct {
	Table           *table.Table
	Attempts        int
	Drift           schema.Drift
	NegativeAmounts int
}

// Validator ingests raw tables.
type Validator struct {
	Logger *slog.Logger
	Read   ReadFunc
	Now    func() time.Time
}

// New creates a Validator that reads CSV files.
func New(logger *slog.Logger) *Validator {
	return &Validator{Logger: logger, Read: table.Read, Now: time.Now}
}

// Ingest reads opts.Source, retrying transient failures with a fixed
// backoff. Missing contract columns are synthesized as nulls and extra
// columns pass through. Every row gets an ingestion timestamp.
func (v *Validator) Ingest(ctx context.Context, opts Options) (*Result, error) {
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	log := v.Logger.With("stage", "ingest", "source", opts.Source)

	var (
		tbl     *table.Table
		attempt int
	)
	op := func() error {
		attempt++
		log.Info("reading source", "attempt", attempt, "max_attempts", attempts)
		t, err := v.Read(opts.Source)
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return backoff.Permanent(err)
			}
			return err
		}
		tbl = t
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("read failed, retrying", "attempt", attempt, "error", err, "wait", wait)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.Backoff), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		log.Error("giving up", "attempts", attempt, "error", err)
		return nil, fmt.Errorf("%w: %s after %d attempt(s): %w", ErrIngestionFailed, opts.Source, attempt, err)
	}

	res := &Result{Table: tbl, Attempts: attempt}
	res.Drift = schema.Diff(tbl.Columns, opts.Contract.Columns)
	if len(res.Drift.Extra) > 0 {
		log.Warn("schema evolution: passing through new columns", "columns", res.Drift.Extra)
	}
	for _, col := range res.Drift.Missing {
		tbl.AddColumn(col, "")
	}
	if len(res.Drift.Missing) > 0 {
		log.Warn("contract warning: missing columns filled with nulls", "columns", res.Drift.Missing)
	}

	if opts.AmountColumn != "" {
		res.NegativeAmounts = flagNegative(tbl, opts.AmountColumn)
		if res.NegativeAmounts > 0 {
			log.Warn("negative amounts flagged", "column", opts.AmountColumn, "rows", res.NegativeAmounts)
		}
	}

	stamp := v.Now().UTC().Format(time.RFC3339)
	if !tbl.AddColumn(schema.ColumnIngestedAt, stamp) {
		for i := range tbl.Rows {
			tbl.Set(i, schema.ColumnIngestedAt, stamp)
		}
	}

	log.Info("ingestion successful", "rows", tbl.Len(), "attempts", attempt)
	return res, nil
}

func flagNegative(t *table.Table, col string) int {
	if !t.AddColumn(schema.ColumnNegativeAmount, "false") {
		for i := range t.Rows {
			t.Set(i, schema.ColumnNegativeAmount, "false")
		}
	}
	n := 0
	for i := range t.Rows {
		amount, err := strconv.ParseFloat(strings.TrimSpace(t.Value(i, col)), 64)
		if err == nil && amount < 0 {
			t.Set(i, schema.ColumnNegativeAmount, "true")
			n++
		}
	}
	return n
}
