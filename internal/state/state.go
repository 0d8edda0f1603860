package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/storepulse/storepulse/internal/config"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "~/.storepulse/state.yaml"

// Stage is one pipeline stage.
type Stage string

const (
	StageIngest    Stage = "ingest"
	StageClean     Stage = "clean"
	StageFacts     Stage = "facts"
	StageSCD       Stage = "scd"
	StageAggregate Stage = "aggregate"
	StageExport    Stage = "export"
	StagePublish   Stage = "publish"
)

// Stage statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{StageIngest, StageClean, StageFacts, StageSCD, StageAggregate, StageExport, StagePublish}
}

// State records the outcome of the most recent run of each stage.
type State struct {
	LastRunID       string               `yaml:"last_run_id,omitempty"`
	LastRunStatus   string               `yaml:"last_run_status,omitempty"`
	LastRunStarted  time.Time            `yaml:"last_run_started,omitempty"`
	LastRunFinished time.Time            `yaml:"last_run_finished,omitempty"`
	LastUpdated     time.Time            `yaml:"last_updated"`
	Stages          map[Stage]StageState `yaml:"stages,omitempty"`
}

// StageState tracks the state of a single stage.
type StageState struct {
	Status      string    `yaml:"status"`
	StartedAt   time.Time `yaml:"started_at,omitempty"`
	CompletedAt time.Time `yaml:"completed_at,omitempty"`
	Rows        int       `yaml:"rows,omitempty"`
	Error       string    `yaml:"error,omitempty"`
}

// Load reads the run state from disk. A missing file yields a fresh state.
func Load(path string) (*State, error) {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	s := &State{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if s.Stages == nil {
		s.Stages = make(map[Stage]StageState)
	}

	return s, nil
}

// Save writes the run state to disk via a temp file and rename.
func (s *State) Save(path string) error {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}

	s.LastUpdated = time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return os.Rename(tmp, path)
}

// New creates a fresh state.
func New() *State {
	return &State{
		LastUpdated: time.Now(),
		Stages:      make(map[Stage]StageState),
	}
}

// Begin marks a stage as running.
func (s *State) Begin(stage Stage, at time.Time) {
	s.Stages[stage] = StageState{Status: StatusRunning, StartedAt: at}
}

// Complete marks a stage as complete with its output row count.
func (s *State) Complete(stage Stage, rows int, at time.Time) {
	ss := s.Stages[stage]
	ss.Status = StatusComplete
	ss.CompletedAt = at
	ss.Rows = rows
	ss.Error = ""
	s.Stages[stage] = ss
}

// Fail marks a stage as failed.
func (s *State) Fail(stage Stage, err error, at time.Time) {
	ss := s.Stages[stage]
	ss.Status = StatusFailed
	ss.CompletedAt = at
	ss.Error = err.Error()
	s.Stages[stage] = ss
}

// Skip marks a stage as skipped, e.g. when its sink is not configured.
func (s *State) Skip(stage Stage, at time.Time) {
	s.Stages[stage] = StageState{Status: StatusSkipped, StartedAt: at, CompletedAt: at}
}

// IsStageComplete returns true if the given stage last completed successfully.
func (s *State) IsStageComplete(stage Stage) bool {
	ss, ok := s.Stages[stage]
	return ok && ss.Status == StatusComplete
}
