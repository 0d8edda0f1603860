package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/storepulse/storepulse/internal/validation"
)

// RunReport summarizes one pipeline run.
type RunReport struct {
	Version     string             `json:"version"`
	RunID       string             `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Status      string             `json:"status"`
	Stages      []StageSummary     `json:"stages"`
	Tables      []TableSummary     `json:"tables"`
	Validation  *validation.Result `json:"validation,omitempty"`
}

// StageSummary describes one stage of the run.
type StageSummary struct {
	Stage       string         `json:"stage"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Counts      map[string]int `json:"counts,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Duration returns the stage wall time.
func (s StageSummary) Duration() time.Duration {
	if s.CompletedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// TableSummary describes one table written by the run.
type TableSummary struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// New starts a report for a run.
func New(runID string) *RunReport {
	return &RunReport{Version: "1", RunID: runID, GeneratedAt: time.Now()}
}

// AddStage appends a stage summary.
func (r *RunReport) AddStage(s StageSummary) {
	r.Stages = append(r.Stages, s)
}

// AddTable records a written table. Writing the same table twice keeps
// the latest row count.
func (r *RunReport) AddTable(name, path string, rows int) {
	for i := range r.Tables {
		if r.Tables[i].Name == name {
			r.Tables[i].Path, r.Tables[i].Rows = path, rows
			return
		}
	}
	r.Tables = append(r.Tables, TableSummary{Name: name, Path: path, Rows: rows})
}

// Finish sets the overall status and generation time.
func (r *RunReport) Finish(status string) {
	r.Status = status
	r.GeneratedAt = time.Now()
}

// WriteJSON writes the report as JSON.
func WriteJSON(report *RunReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadJSON reads a report from a JSON file.
func ReadJSON(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &RunReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// WriteText writes the report as human-readable text.
func WriteText(report *RunReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(FormatText(report)), 0o644)
}

// FormatText renders the report as human-readable text.
func FormatText(report *RunReport) string {
	var b strings.Builder

	b.WriteString("=== StorePulse Run Report ===\n")
	b.WriteString(fmt.Sprintf("Run:       %s\n", report.RunID))
	b.WriteString(fmt.Sprintf("Generated: %s\n", report.GeneratedAt.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Status:    %s\n\n", strings.ToUpper(report.Status)))

	b.WriteString("Stages:\n")
	for _, s := range report.Stages {
		b.WriteString(fmt.Sprintf("  %-10s %-9s %8s", s.Stage, s.Status, s.Duration().Round(time.Millisecond)))
		if len(s.Counts) > 0 {
			b.WriteString("  " + formatCounts(s.Counts))
		}
		b.WriteString("\n")
		if s.Error != "" {
			b.WriteString(fmt.Sprintf("    error: %s\n", s.Error))
		}
	}
	b.WriteString("\n")

	if len(report.Tables) > 0 {
		b.WriteString("Tables:\n")
		for _, t := range report.Tables {
			b.WriteString(fmt.Sprintf("  %-28s %8d rows\n", t.Name, t.Rows))
		}
		b.WriteString("\n")
	}

	if report.Validation != nil {
		b.WriteString(fmt.Sprintf("History validation: %s\n", report.Validation.Status))
		for _, c := range report.Validation.Checks {
			status := "PASS"
			if !c.Passed {
				status = "FAIL"
			}
			b.WriteString(fmt.Sprintf("  [%s] %s\n", status, c.Name))
		}
	}

	return b.String()
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
