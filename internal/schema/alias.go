package schema

import (
	"fmt"

	"github.com/storepulse/storepulse/internal/table"
)

// Alias is an ordered resolution table mapping acceptable input column
// names onto one canonical name. Candidates are tried in order; the first
// one present wins. When none is present the canonical column is
// synthesized with Placeholder.
type Alias struct {
	Canonical   string   `yaml:"canonical"`
	Candidates  []string `yaml:"candidates"`
	Placeholder string   `yaml:"placeholder"`
}

// StoreKey is the default store identifier alias chain for inventory
// snapshots.
var StoreKey = Alias{
	Canonical:   "store_id",
	Candidates:  []string{"store_id", "warehouse_id", "id"},
	Placeholder: "WH-001",
}

// Resolution records which rule of an Alias was applied.
type Resolution struct {
	Canonical   string
	Source      string // column the values came from; empty when synthesized
	Synthesized bool
}

// Renamed reports whether a non-canonical column was renamed.
func (r Resolution) Renamed() bool {
	return !r.Synthesized && r.Source != r.Canonical
}

// Resolve applies the alias to t in place.
func (a Alias) Resolve(t *table.Table) (Resolution, error) {
	res := Resolution{Canonical: a.Canonical}

	for _, cand := range a.Candidates {
		if !t.Has(cand) {
			continue
		}
		res.Source = cand
		if cand != a.Canonical {
			if t.Has(a.Canonical) {
				return res, fmt.Errorf("alias %q: canonical column exists but is not a listed candidate", a.Canonical)
			}
			if err := t.Rename(cand, a.Canonical); err != nil {
				return res, err
			}
		}
		return res, nil
	}

	if t.Has(a.Canonical) {
		// Canonical present but not listed; keep it as-is.
		res.Source = a.Canonical
		return res, nil
	}

	t.AddColumn(a.Canonical, a.Placeholder)
	res.Synthesized = true
	return res, nil
}
