package table

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecode_PadsRaggedRows(t *testing.T) {
	in := "\ufeffa,b,c\n1,2\n4,5,6,7\n"
	tbl, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(tbl.Columns, ","); got != "a,b,c" {
		t.Fatalf("columns = %s", got)
	}
	if tbl.Value(0, "c") != "" {
		t.Errorf("expected null padding, got %q", tbl.Value(0, "c"))
	}
	if len(tbl.Rows[1]) != 3 {
		t.Errorf("expected truncated row of 3, got %d", len(tbl.Rows[1]))
	}
}

func TestDecode_Empty(t *testing.T) {
	tbl, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Len() != 0 || len(tbl.Columns) != 0 {
		t.Errorf("expected empty table, got %+v", tbl)
	}
}

func TestRenameAndDrop(t *testing.T) {
	tbl := New("warehouse_id", "product_id")
	tbl.Append("W1", "P01")

	if err := tbl.Rename("warehouse_id", "store_id"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if tbl.Has("warehouse_id") {
		t.Error("old column should be gone")
	}
	if tbl.Value(0, "store_id") != "W1" {
		t.Errorf("expected W1, got %q", tbl.Value(0, "store_id"))
	}
	if err := tbl.Rename("product_id", "store_id"); err == nil {
		t.Error("expected error renaming onto an existing column")
	}

	tbl.Drop("store_id")
	if tbl.Has("store_id") || tbl.Value(0, "product_id") != "P01" {
		t.Errorf("unexpected table after drop: %+v", tbl)
	}
}

func TestProject_MissingColumn(t *testing.T) {
	tbl := New("a", "b")
	tbl.Append("1", "2")

	out, err := tbl.Project("b", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rows[0][0] != "2" || out.Rows[0][1] != "1" {
		t.Errorf("unexpected projection: %v", out.Rows[0])
	}

	if _, err := tbl.Project("a", "z"); err == nil {
		t.Error("expected error for missing column")
	}
}

func TestAddColumn(t *testing.T) {
	tbl := New("a")
	tbl.Append("1")
	if !tbl.AddColumn("b", "x") {
		t.Fatal("expected column to be added")
	}
	if tbl.AddColumn("b", "y") {
		t.Error("expected duplicate add to report false")
	}
	if tbl.Value(0, "b") != "x" {
		t.Errorf("expected fill value x, got %q", tbl.Value(0, "b"))
	}
}

func TestWriteRead_RoundTripAndReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.csv")

	first := New("id", "note")
	first.Append("1", "has, comma")
	if err := Write(path, first); err != nil {
		t.Fatalf("Write: %v", err)
	}

	second := New("id")
	second.Append("2")
	second.Append("3")
	if err := Write(path, second); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 2 || got.Has("note") {
		t.Errorf("expected replaced table, got %+v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, found %d entries", len(entries))
	}
}

func TestRead_NotFound(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
