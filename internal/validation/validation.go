// Package validation checks dimension history invariants without
// modifying the history.
package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/storepulse/storepulse/internal/scd"
	"github.com/storepulse/storepulse/internal/table"
)

// Check names.
const (
	CheckSingleCurrent      = "single_current"
	CheckStartDatePresent   = "start_date_present"
	CheckEndDateConsistency = "end_date_consistency"
)

// Result holds the outcome of a history validation.
type Result struct {
	Status      string        `json:"status"` // PASS, FAIL
	Rows        int           `json:"rows"`
	Keys        int           `json:"keys"`
	Checks      []CheckResult `json:"checks"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// CheckResult holds the violations found by one check.
type CheckResult struct {
	Name       string      `json:"name"`
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations,omitempty"`
}

// Violation points at an offending key or row. Row is 1-based and zero
// for key-level violations.
type Violation struct {
	Key    string `json:"key"`
	Row    int    `json:"row,omitempty"`
	Detail string `json:"detail"`
}

// Validator checks SCD2 history tables.
type Validator struct {
	KeyColumn string
	Callback  func(check string, passed bool)
}

// Validate runs every check against the history table.
func (v *Validator) Validate(t *table.Table) (*Result, error) {
	result := &Result{StartedAt: time.Now(), Rows: t.Len()}

	for _, col := range []string{v.KeyColumn, scd.ColumnStartDate, scd.ColumnEndDate, scd.ColumnIsCurrent} {
		if !t.Has(col) {
			return nil, fmt.Errorf("history has no %q column", col)
		}
	}

	single := CheckResult{Name: CheckSingleCurrent}
	start := CheckResult{Name: CheckStartDatePresent}
	end := CheckResult{Name: CheckEndDateConsistency}

	currentRows := make(map[string][]int)
	var keys []string
	for i := range t.Rows {
		key := t.Value(i, v.KeyColumn)
		if _, seen := currentRows[key]; !seen {
			currentRows[key] = nil
			keys = append(keys, key)
		}

		// An unreadable flag counts as a closed row; the remaining checks
		// still apply to it.
		current, err := parseCurrent(t.Value(i, scd.ColumnIsCurrent))
		if err != nil {
			end.Violations = append(end.Violations, Violation{Key: key, Row: i + 1, Detail: err.Error()})
		}
		if current {
			currentRows[key] = append(currentRows[key], i+1)
		}

		if strings.TrimSpace(t.Value(i, scd.ColumnStartDate)) == "" {
			start.Violations = append(start.Violations, Violation{Key: key, Row: i + 1, Detail: "null start_date"})
		}

		hasEnd := strings.TrimSpace(t.Value(i, scd.ColumnEndDate)) != ""
		switch {
		case err == nil && !current && !hasEnd:
			end.Violations = append(end.Violations, Violation{Key: key, Row: i + 1, Detail: "non-current row missing end_date"})
		case current && hasEnd:
			end.Violations = append(end.Violations, Violation{Key: key, Row: i + 1, Detail: "current row has end_date"})
		}
	}
	result.Keys = len(keys)

	// Every key must end with exactly one current row.
	sort.Strings(keys)
	for _, key := range keys {
		rows := currentRows[key]
		switch {
		case len(rows) == 0:
			single.Violations = append(single.Violations, Violation{Key: key, Detail: "no current row"})
		case len(rows) > 1:
			single.Violations = append(single.Violations, Violation{
				Key:    key,
				Detail: fmt.Sprintf("%d current rows (rows %s)", len(rows), joinInts(rows)),
			})
		}
	}

	for _, c := range []*CheckResult{&single, &start, &end} {
		c.Passed = len(c.Violations) == 0
		v.notify(c.Name, c.Passed)
		result.Checks = append(result.Checks, *c)
	}

	result.CompletedAt = time.Now()
	result.Status = computeOverallStatus(result.Checks)
	return result, nil
}

func (v *Validator) notify(check string, passed bool) {
	if v.Callback != nil {
		v.Callback(check, passed)
	}
}

func computeOverallStatus(checks []CheckResult) string {
	for _, c := range checks {
		if !c.Passed {
			return "FAIL"
		}
	}
	return "PASS"
}

func parseCurrent(v string) (bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid is_current value %q", v)
	}
	return b, nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
