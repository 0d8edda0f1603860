package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/storepulse/storepulse/internal/aws"
	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/lock"
	"github.com/storepulse/storepulse/internal/metrics"
	"github.com/storepulse/storepulse/internal/report"
	"github.com/storepulse/storepulse/internal/state"
	"github.com/storepulse/storepulse/internal/table"
	"github.com/storepulse/storepulse/internal/target"
	"github.com/storepulse/storepulse/internal/validation"
)

// Table names in the data directory.
const (
	TableRawTransactions    = "silo_pos_transactions"
	TableRawInventory       = "silo_warehouse"
	TableProducts           = "dim_products"
	TableCustomerUpdates    = "customer_updates"
	TableBronzeTransactions = "bronze_pos_transactions"
	TableBronzeInventory    = "bronze_warehouse"
	TableSilverTransactions = "silver_pos_transactions"
	TableSilverInventory    = "silver_warehouse"
	TableQuarantine         = "quarantine_pos_transactions"
	TableFactSales          = "fact_sales"
	TableFactInventory      = "fact_inventory"
	TableCustomerHistory    = "dim_customers_scd2"
)

// ReportFile is the run report written to the data directory by Run.
const ReportFile = "run_report.json"

// errSkipped marks a stage with nothing configured to do.
var errSkipped = errors.New("stage skipped")

// Engine is the pipeline engine shared by all commands.
type Engine struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Pipeline
	State   *state.State

	// S3 overrides the client built from the export config.
	S3 aws.Client

	statePath string
	now       func() time.Time
}

// New creates a new Engine with the given config and logger.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics.New(),
		statePath: config.ExpandHome(state.DefaultPath),
		now:       time.Now,
	}
}

// StageResult is what one stage did.
type StageResult struct {
	Counts map[string]int
	Tables []report.TableSummary
}

func newStageResult() *StageResult {
	return &StageResult{Counts: make(map[string]int)}
}

func (r *StageResult) table(name, path string, rows int) {
	r.Tables = append(r.Tables, report.TableSummary{Name: name, Path: path, Rows: rows})
}

// Path returns the file path of a table in the data directory.
func (e *Engine) Path(name string) string {
	return e.Config.Data.Path(name)
}

// LoadState loads the run state from disk.
func (e *Engine) LoadState() (*state.State, error) {
	st, err := state.Load(e.statePath)
	if err != nil {
		return nil, err
	}
	e.State = st
	return st, nil
}

// SaveState persists the run state to disk.
func (e *Engine) SaveState() error {
	if e.State == nil {
		return fmt.Errorf("no state to save")
	}
	return e.State.Save(e.statePath)
}

func (e *Engine) writeTable(name string, t *table.Table, res *StageResult) error {
	path := e.Path(name)
	if err := table.Write(path, t); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	res.table(name, path, t.Len())
	return nil
}

// RunStage executes one stage on its own under the run lock, recording its
// outcome in the run state and metrics.
func (e *Engine) RunStage(ctx context.Context, stage state.Stage, sinks []target.Sink) (*StageResult, error) {
	if err := lock.Acquire(e.Config.Lock.Path); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(e.Config.Lock.Path); err != nil {
			e.Logger.Warn("releasing lock", "error", err)
		}
	}()

	if _, err := e.LoadState(); err != nil {
		return nil, err
	}
	res, _, err := e.step(ctx, stage, sinks)
	if serr := e.SaveState(); serr != nil {
		e.Logger.Warn("saving state", "error", serr)
	}
	if err := e.writeMetrics(); err != nil {
		e.Logger.Warn("writing metrics", "error", err)
	}
	return res, err
}

// step runs a stage and records it in state and metrics.
func (e *Engine) step(ctx context.Context, stage state.Stage, sinks []target.Sink) (*StageResult, report.StageSummary, error) {
	start := e.now()
	e.State.Begin(stage, start)
	e.Logger.Info("stage started", "stage", string(stage))

	res, err := e.dispatch(ctx, stage, sinks)
	end := e.now()
	summary := report.StageSummary{Stage: string(stage), StartedAt: start, CompletedAt: end}
	if res != nil {
		summary.Counts = res.Counts
	}

	switch {
	case errors.Is(err, errSkipped):
		e.State.Skip(stage, end)
		summary.Status = state.StatusSkipped
		e.Logger.Info("stage skipped", "stage", string(stage))
		return res, summary, nil
	case err != nil:
		e.State.Fail(stage, err, end)
		e.Metrics.Stage(string(stage), start, err)
		summary.Status = state.StatusFailed
		summary.Error = err.Error()
		e.Logger.Error("stage failed", "stage", string(stage), "error", err)
		return res, summary, err
	}

	rows := 0
	for _, t := range res.Tables {
		rows += t.Rows
	}
	e.State.Complete(stage, rows, end)
	e.Metrics.Stage(string(stage), start, nil)
	summary.Status = state.StatusComplete
	e.Logger.Info("stage complete", "stage", string(stage), "duration", end.Sub(start))
	return res, summary, nil
}

func (e *Engine) dispatch(ctx context.Context, stage state.Stage, sinks []target.Sink) (*StageResult, error) {
	switch stage {
	case state.StageIngest:
		return e.Ingest(ctx)
	case state.StageClean:
		return e.Clean()
	case state.StageFacts:
		return e.BuildFacts()
	case state.StageSCD:
		return e.TrackHistory()
	case state.StageAggregate:
		return e.Aggregate(ctx)
	case state.StageExport:
		return e.Export(ctx)
	case state.StagePublish:
		return e.Publish(ctx, sinks)
	}
	return nil, fmt.Errorf("unknown stage: %s", stage)
}

// Run executes every stage in order under the run lock. It stops at the
// first failing stage. The run report is written either way.
func (e *Engine) Run(ctx context.Context, sinks []target.Sink) (*report.RunReport, error) {
	if err := lock.Acquire(e.Config.Lock.Path); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(e.Config.Lock.Path); err != nil {
			e.Logger.Warn("releasing lock", "error", err)
		}
	}()

	st, err := e.LoadState()
	if err != nil {
		return nil, err
	}

	started := e.now()
	runID := started.UTC().Format("20060102T150405Z")
	rep := report.New(runID)
	st.LastRunID = runID
	st.LastRunStarted = started
	st.LastRunStatus = state.StatusRunning
	log := e.Logger.With("run_id", runID)
	log.Info("pipeline run started")

	var runErr error
	for _, stage := range state.Stages() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res, summary, err := e.step(ctx, stage, sinks)
		rep.AddStage(summary)
		if res != nil {
			for _, t := range res.Tables {
				rep.AddTable(t.Name, t.Path, t.Rows)
			}
		}
		if err != nil {
			runErr = fmt.Errorf("%s: %w", stage, err)
			break
		}
		if stage == state.StageSCD {
			rep.Validation = e.validateAfterSCD(log)
		}
	}

	status := state.StatusComplete
	if runErr != nil {
		status = state.StatusFailed
	}
	rep.Finish(status)
	st.LastRunStatus = status
	st.LastRunFinished = e.now()

	if err := e.SaveState(); err != nil {
		log.Warn("saving state", "error", err)
	}
	reportPath := filepath.Join(config.ExpandHome(e.Config.Data.Directory), ReportFile)
	if err := report.WriteJSON(rep, reportPath); err != nil {
		log.Warn("writing run report", "error", err)
	}
	if err := e.writeMetrics(); err != nil {
		log.Warn("writing metrics", "error", err)
	}

	if runErr != nil {
		log.Error("pipeline run failed", "error", runErr)
		return rep, runErr
	}
	log.Info("pipeline run complete", "duration", e.now().Sub(started))
	return rep, nil
}

// validateAfterSCD checks the history just written. Violations are
// reported but do not fail the run.
func (e *Engine) validateAfterSCD(log *slog.Logger) *validation.Result {
	res, err := e.ValidateHistory()
	if err != nil {
		log.Warn("history validation skipped", "error", err)
		return nil
	}
	if res.Status != "PASS" {
		log.Error("history validation failed", "table", TableCustomerHistory)
	}
	return res
}

func (e *Engine) writeMetrics() error {
	if e.Config.Metrics.Textfile == "" {
		return nil
	}
	return e.Metrics.WriteTextfile(config.ExpandHome(e.Config.Metrics.Textfile))
}
