package report

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/storepulse/storepulse/internal/validation"
)

func sampleReport() *RunReport {
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	r := New("20240601T080000Z")
	r.AddStage(StageSummary{
		Stage:       "clean",
		Status:      "complete",
		StartedAt:   start,
		CompletedAt: start.Add(1500 * time.Millisecond),
		Counts:      map[string]int{"quarantined": 1, "duplicates": 2},
	})
	r.AddStage(StageSummary{
		Stage:     "facts",
		Status:    "failed",
		StartedAt: start.Add(2 * time.Second),
		Error:     "required input table missing",
	})
	r.AddTable("silver_pos_transactions", "/data/silver_pos_transactions.csv", 97)
	r.AddTable("silver_pos_transactions", "/data/silver_pos_transactions.csv", 98)
	r.Validation = &validation.Result{Status: "PASS", Checks: []validation.CheckResult{{Name: "single_current", Passed: true}}}
	r.Finish("failed")
	return r
}

func TestJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_report.json")

	if err := WriteJSON(sampleReport(), path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	loaded, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	if loaded.Version != "1" || loaded.RunID != "20240601T080000Z" {
		t.Errorf("unexpected header %+v", loaded)
	}
	if loaded.Status != "failed" {
		t.Errorf("expected failed, got %s", loaded.Status)
	}
	if len(loaded.Stages) != 2 || loaded.Stages[0].Counts["quarantined"] != 1 {
		t.Errorf("unexpected stages %+v", loaded.Stages)
	}
	if len(loaded.Tables) != 1 || loaded.Tables[0].Rows != 98 {
		t.Errorf("expected one table with the latest count, got %+v", loaded.Tables)
	}
	if loaded.Validation == nil || loaded.Validation.Status != "PASS" {
		t.Error("validation result should round-trip")
	}
}

func TestFormatText(t *testing.T) {
	text := FormatText(sampleReport())

	for _, want := range []string{
		"=== StorePulse Run Report ===",
		"Status:    FAILED",
		"duplicates=2 quarantined=1",
		"1.5s",
		"error: required input table missing",
		"silver_pos_transactions",
		"[PASS] single_current",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q:\n%s", want, text)
		}
	}
}

func TestReadJSON_Missing(t *testing.T) {
	if _, err := ReadJSON(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing report")
	}
}
