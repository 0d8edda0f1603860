package state

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileIsFresh(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "state.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Stages) != 0 {
		t.Errorf("expected no stages, got %v", s.Stages)
	}
}

func TestSaveLoad_StageTransitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	s := New()
	s.LastRunID = "run-1"
	s.Begin(StageIngest, now)
	s.Complete(StageIngest, 120, now.Add(time.Second))
	s.Begin(StageFacts, now)
	s.Fail(StageFacts, errors.New("silver_pos_transactions missing"), now.Add(2*time.Second))
	s.Skip(StagePublish, now)

	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !loaded.IsStageComplete(StageIngest) {
		t.Error("ingest should be complete")
	}
	if loaded.Stages[StageIngest].Rows != 120 {
		t.Errorf("expected 120 rows, got %d", loaded.Stages[StageIngest].Rows)
	}
	if loaded.IsStageComplete(StageFacts) || loaded.Stages[StageFacts].Error == "" {
		t.Errorf("facts should be failed with an error, got %+v", loaded.Stages[StageFacts])
	}
	if loaded.Stages[StagePublish].Status != StatusSkipped {
		t.Errorf("publish should be skipped, got %s", loaded.Stages[StagePublish].Status)
	}
	if loaded.LastRunID != "run-1" {
		t.Errorf("expected run id to persist, got %q", loaded.LastRunID)
	}
}

func TestStagesOrder(t *testing.T) {
	got := Stages()
	if got[0] != StageIngest || got[3] != StageSCD || got[4] != StageAggregate {
		t.Errorf("unexpected order %v", got)
	}
}
