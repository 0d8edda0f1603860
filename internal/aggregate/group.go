package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/storepulse/storepulse/internal/table"
)

// group accumulates a float sum per composite key and remembers the key
// parts for output.
type group struct {
	parts map[string][]string
	sums  map[string]float64
}

func newGroup() *group {
	return &group{parts: make(map[string][]string), sums: make(map[string]float64)}
}

func (g *group) add(parts []string, v float64) {
	k := strings.Join(parts, "\x00")
	if _, ok := g.parts[k]; !ok {
		g.parts[k] = append([]string(nil), parts...)
	}
	g.sums[k] += v
}

// keys returns the group keys in ascending order.
func (g *group) keys() []string {
	keys := make([]string, 0, len(g.parts))
	for k := range g.parts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessParts(g.parts[keys[i]], g.parts[keys[j]])
	})
	return keys
}

// sumBy sums valueCol grouped by keyCols. Rows with a null key part are
// excluded. Unparseable values contribute nothing.
func sumBy(t *table.Table, valueCol string, keyCols ...string) *group {
	g := newGroup()
	idx := make([]int, len(keyCols))
	for i, c := range keyCols {
		idx[i] = t.Index(c)
		if idx[i] < 0 {
			return g
		}
	}
	vi := t.Index(valueCol)

	parts := make([]string, len(keyCols))
rows:
	for _, row := range t.Rows {
		for i, x := range idx {
			parts[i] = strings.TrimSpace(row[x])
			if parts[i] == "" {
				continue rows
			}
		}
		v := 0.0
		if vi >= 0 {
			v, _ = parseNumber(row[vi])
		}
		g.add(parts, v)
	}
	return g
}

// lessParts orders composite keys part by part, numerically when both
// parts are numbers.
func lessParts(a, b []string) bool {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		return lessValue(a[i], b[i])
	}
	return false
}

func lessValue(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil && fa != fb {
		return fa < fb
	}
	return a < b
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// lookup indexes the first row for each trimmed key value. Callers trim
// the key they look up the same way.
func lookup(t *table.Table, keyCol string) map[string]int {
	m := make(map[string]int)
	if t == nil || !t.Has(keyCol) {
		return m
	}
	for i := range t.Rows {
		k := strings.TrimSpace(t.Value(i, keyCol))
		if _, ok := m[k]; !ok {
			m[k] = i
		}
	}
	return m
}
