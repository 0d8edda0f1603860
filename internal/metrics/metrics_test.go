package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRowsAndStages(t *testing.T) {
	p := New()
	p.Rows("clean", "pos_transactions", RowsQuarantined, 1)
	p.Rows("clean", "pos_transactions", RowsQuarantined, 2)
	p.Rows("clean", "pos_transactions", RowsDuplicate, 0)

	if got := testutil.ToFloat64(p.rows.WithLabelValues("clean", "pos_transactions", RowsQuarantined)); got != 3 {
		t.Errorf("expected 3 quarantined rows, got %v", got)
	}

	p.Stage("facts", time.Now(), errors.New("missing input"))
	p.Stage("ingest", time.Now(), nil)
	if got := testutil.ToFloat64(p.stageFailures.WithLabelValues("facts")); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(p.lastSuccess.WithLabelValues("ingest")); got <= 0 {
		t.Errorf("expected last success timestamp, got %v", got)
	}
	if got := testutil.CollectAndCount(p.stageDuration); got != 2 {
		t.Errorf("expected 2 duration series, got %d", got)
	}
}

func TestNilPipeline(t *testing.T) {
	var p *Pipeline
	p.Rows("clean", "x", RowsRead, 5)
	p.Retries("x", 1)
	p.Stage("clean", time.Now(), nil)
	if err := p.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("nil pipeline should not fail: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	p := New()
	p.Retries("silo_pos_transactions.csv", 2)
	path := filepath.Join(t.TempDir(), "textfile", "storepulse.prom")

	if err := p.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `storepulse_ingest_retries_total{source="silo_pos_transactions.csv"} 2`) {
		t.Errorf("unexpected textfile contents:\n%s", data)
	}
}
