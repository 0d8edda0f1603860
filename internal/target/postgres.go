package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storepulse/storepulse/internal/table"
)

// PostgresSink publishes tables to PostgreSQL. Columns are created as
// TEXT; consumers cast as needed.
type PostgresSink struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresSink connects to PostgreSQL.
func NewPostgresSink(ctx context.Context, connStr, schema string) (*PostgresSink, error) {
	if schema == "" {
		schema = "public"
	}
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging PostgreSQL: %w", err)
	}
	return &PostgresSink{pool: pool, schema: schema}, nil
}

func (p *PostgresSink) Name() string { return "postgres" }

// ReplaceTable drops, recreates and bulk loads name in one transaction,
// so readers see either the previous table or the new one.
func (p *PostgresSink) ReplaceTable(ctx context.Context, name string, t *table.Table) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	qualified := quoteIdentPg(p.schema) + "." + quoteIdentPg(name)
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
		return 0, fmt.Errorf("dropping %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, createTableSQL(qualified, t.Columns)); err != nil {
		return 0, fmt.Errorf("creating %s: %w", name, err)
	}

	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = nullable(v)
		}
		rows[i] = row
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{p.schema, name}, t.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copying into %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing %s: %w", name, err)
	}
	return n, nil
}

func (p *PostgresSink) Close(_ context.Context) error {
	p.pool.Close()
	return nil
}

func createTableSQL(qualified string, columns []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdentPg(c) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", qualified, strings.Join(defs, ", "))
}

func quoteIdentPg(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
