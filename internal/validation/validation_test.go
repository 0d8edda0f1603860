package validation

import (
	"testing"

	"github.com/storepulse/storepulse/internal/table"
)

func history(rows ...[]string) *table.Table {
	t := table.New("customer_id", "city", "start_date", "end_date", "is_current")
	for _, r := range rows {
		t.Append(r...)
	}
	return t
}

func makeTestValidator() *Validator {
	return &Validator{KeyColumn: "customer_id"}
}

func checkByName(t *testing.T, r *Result, name string) CheckResult {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return CheckResult{}
}

func TestValidate_Pass(t *testing.T) {
	h := history(
		[]string{"C001", "Mumbai", "2024-01-01", "2024-06-01", "False"},
		[]string{"C001", "Delhi", "2024-06-01", "", "True"},
		[]string{"C002", "Pune", "2024-02-01", "", "true"},
	)

	result, err := makeTestValidator().Validate(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "PASS" {
		t.Errorf("expected PASS, got %s: %+v", result.Status, result.Checks)
	}
	if result.Keys != 2 || result.Rows != 3 {
		t.Errorf("expected 2 keys and 3 rows, got %d and %d", result.Keys, result.Rows)
	}
}

func TestValidate_MultipleCurrentRows(t *testing.T) {
	h := history(
		[]string{"C001", "Mumbai", "2024-01-01", "", "true"},
		[]string{"C001", "Delhi", "2024-06-01", "", "true"},
	)

	var notified []string
	v := makeTestValidator()
	v.Callback = func(check string, passed bool) {
		if !passed {
			notified = append(notified, check)
		}
	}

	result, err := v.Validate(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "FAIL" {
		t.Errorf("expected FAIL, got %s", result.Status)
	}
	c := checkByName(t, result, CheckSingleCurrent)
	if c.Passed || len(c.Violations) != 1 || c.Violations[0].Key != "C001" {
		t.Errorf("unexpected single_current result %+v", c)
	}
	if len(notified) != 1 || notified[0] != CheckSingleCurrent {
		t.Errorf("expected callback for single_current only, got %v", notified)
	}
}

func TestValidate_DateInvariants(t *testing.T) {
	h := history(
		[]string{"C001", "Mumbai", "", "2024-06-01", "false"},
		[]string{"C001", "Delhi", "2024-06-01", "", "false"},
		[]string{"C002", "Pune", "2024-02-01", "2024-03-01", "true"},
	)

	result, err := makeTestValidator().Validate(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := checkByName(t, result, CheckStartDatePresent); c.Passed || c.Violations[0].Row != 1 {
		t.Errorf("expected null start_date on row 1, got %+v", c)
	}
	if c := checkByName(t, result, CheckEndDateConsistency); len(c.Violations) != 2 {
		t.Errorf("expected 2 end_date violations, got %+v", c)
	}
}

func TestValidate_MissingColumn(t *testing.T) {
	h := table.New("customer_id", "start_date", "end_date")
	if _, err := makeTestValidator().Validate(h); err == nil {
		t.Error("expected error for missing is_current column")
	}
}

func TestValidate_NoCurrentRow(t *testing.T) {
	h := history(
		[]string{"C001", "Mumbai", "2024-01-01", "2024-06-01", "false"},
		[]string{"C001", "Delhi", "2024-06-01", "2024-09-01", "false"},
		[]string{"C002", "Pune", "2024-02-01", "", "true"},
	)

	result, err := makeTestValidator().Validate(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "FAIL" {
		t.Errorf("expected FAIL, got %s", result.Status)
	}
	c := checkByName(t, result, CheckSingleCurrent)
	if c.Passed || len(c.Violations) != 1 {
		t.Fatalf("expected one single_current violation, got %+v", c)
	}
	if v := c.Violations[0]; v.Key != "C001" || v.Detail != "no current row" {
		t.Errorf("unexpected violation %+v", v)
	}
}

func TestValidate_UnreadableCurrentFlag(t *testing.T) {
	h := history(
		[]string{"C001", "Mumbai", "", "", "maybe"},
		[]string{"C001", "Delhi", "2024-06-01", "", "true"},
	)

	result, err := makeTestValidator().Validate(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		check string
		row   int
	}{
		{CheckStartDatePresent, 1},
		{CheckEndDateConsistency, 1},
	}
	for _, tt := range tests {
		c := checkByName(t, result, tt.check)
		if len(c.Violations) != 1 || c.Violations[0].Row != tt.row {
			t.Errorf("%s: expected one violation on row %d, got %+v", tt.check, tt.row, c.Violations)
		}
	}
	if c := checkByName(t, result, CheckSingleCurrent); !c.Passed {
		t.Errorf("row 2 is the only current row, got %+v", c)
	}
}
