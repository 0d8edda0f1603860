// Package metrics records per-run pipeline metrics and writes them in the
// Prometheus textfile format for a node exporter to pick up.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storepulse"

// Row count kinds.
const (
	RowsRead        = "read"
	RowsWritten     = "written"
	RowsDuplicate   = "duplicate"
	RowsQuarantined = "quarantined"
	RowsRejected    = "rejected"
)

// Pipeline holds the run metrics. A nil *Pipeline is valid and records
// nothing.
type Pipeline struct {
	registry *prometheus.Registry

	rows          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	lastSuccess   *prometheus.GaugeVec
	retries       *prometheus.CounterVec
}

// New creates a Pipeline with its own registry.
func New() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows processed per stage and table, by kind.",
		}, []string{"stage", "table", "kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Stage runs that ended in an error.",
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful stage run.",
		}, []string{"stage"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_retries_total",
			Help:      "Read retries performed during ingestion.",
		}, []string{"source"}),
	}
	p.registry.MustRegister(p.rows, p.stageDuration, p.stageFailures, p.lastSuccess, p.retries)
	return p
}

// Registry exposes the underlying registry.
func (p *Pipeline) Registry() *prometheus.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

// Rows adds n rows of the given kind.
func (p *Pipeline) Rows(stage, table, kind string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.rows.WithLabelValues(stage, table, kind).Add(float64(n))
}

// Retries records ingestion read retries for a source.
func (p *Pipeline) Retries(source string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.retries.WithLabelValues(source).Add(float64(n))
}

// Stage records the outcome of a stage that started at start.
func (p *Pipeline) Stage(stage string, start time.Time, err error) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		p.stageFailures.WithLabelValues(stage).Inc()
		return
	}
	p.lastSuccess.WithLabelValues(stage).SetToCurrentTime()
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (p *Pipeline) WriteTextfile(path string) error {
	if p == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
