package table

import (
	"fmt"
)

// Table is an in-memory tabular dataset addressed by column name.
// Every cell is a string; the empty string is the null value.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1 if absent.
func (t *Table) Index(col string) int {
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	return t.Index(col) >= 0
}

// Value returns the cell at (row, col). Absent columns read as null.
func (t *Table) Value(row int, col string) string {
	i := t.Index(col)
	if i < 0 {
		return ""
	}
	return t.Rows[row][i]
}

// Set writes a cell. It panics if the column does not exist.
func (t *Table) Set(row int, col, value string) {
	i := t.Index(col)
	if i < 0 {
		panic(fmt.Sprintf("table: unknown column %q", col))
	}
	t.Rows[row][i] = value
}

// Append adds a row. Short rows are padded with nulls, long rows truncated.
func (t *Table) Append(values ...string) {
	row := make([]string, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// AppendMap adds a row from a column->value map. Unknown keys are ignored.
func (t *Table) AppendMap(values map[string]string) {
	row := make([]string, len(t.Columns))
	for k, v := range values {
		if i := t.Index(k); i >= 0 {
			row[i] = v
		}
	}
	t.Rows = append(t.Rows, row)
}

// Record returns a row as a column->value map.
func (t *Table) Record(row int) map[string]string {
	m := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		m[c] = t.Rows[row][i]
	}
	return m
}

// AddColumn appends a column filled with fill. It returns false if the
// column already exists.
func (t *Table) AddColumn(name, fill string) bool {
	if t.Has(name) {
		return false
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
	t.reindex()
	return true
}

// Rename renames a column in place. It fails if from is absent or to already exists.
func (t *Table) Rename(from, to string) error {
	i := t.Index(from)
	if i < 0 {
		return fmt.Errorf("renaming %q: column not found", from)
	}
	if t.Has(to) {
		return fmt.Errorf("renaming %q: column %q already exists", from, to)
	}
	t.Columns[i] = to
	t.reindex()
	return nil
}

// Drop removes a column if present.
func (t *Table) Drop(col string) {
	i := t.Index(col)
	if i < 0 {
		return
	}
	t.Columns = append(t.Columns[:i:i], t.Columns[i+1:]...)
	for r, row := range t.Rows {
		t.Rows[r] = append(row[:i:i], row[i+1:]...)
	}
	t.reindex()
}

// Project returns a new table with exactly the given columns, in order.
// A column missing from t is an error.
func (t *Table) Project(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	var missing []string
	for i, c := range cols {
		idx[i] = t.Index(c)
		if idx[i] < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("projecting columns: missing %v", missing)
	}

	out := New(cols...)
	out.Rows = make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		nr := make([]string, len(cols))
		for i, src := range idx {
			nr[i] = row[src]
		}
		out.Rows[r] = nr
	}
	return out, nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Empty returns a table with the same columns and no rows.
func (t *Table) Empty() *Table {
	return New(t.Columns...)
}
