// Package target publishes engine-owned tables to external reporting
// stores. Every publish replaces the destination table wholesale.
package target

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storepulse/storepulse/internal/table"
)

// Sink replaces tables in one external store.
type Sink interface {
	Name() string
	ReplaceTable(ctx context.Context, name string, t *table.Table) (int64, error)
	Close(ctx context.Context) error
}

// NamedTable pairs a destination name with its rows.
type NamedTable struct {
	Name  string
	Table *table.Table
}

// Result records one published table.
type Result struct {
	Sink  string `json:"sink"`
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Publish replaces every table in every sink, in order. It stops at the
// first failure; tables already replaced stay replaced.
func Publish(ctx context.Context, logger *slog.Logger, sinks []Sink, tables []NamedTable) ([]Result, error) {
	var results []Result
	for _, s := range sinks {
		log := logger.With("stage", "publish", "sink", s.Name())
		for _, nt := range tables {
			n, err := s.ReplaceTable(ctx, nt.Name, nt.Table)
			if err != nil {
				return results, fmt.Errorf("publishing %s to %s: %w", nt.Name, s.Name(), err)
			}
			log.Info("table published", "table", nt.Name, "rows", n)
			results = append(results, Result{Sink: s.Name(), Table: nt.Name, Rows: n})
		}
	}
	return results, nil
}

// nullable maps the empty string to a null value.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
