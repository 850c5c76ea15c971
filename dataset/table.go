// Package dataset is the in-memory tabular model shared by every stage:
// a header plus rows keyed by column name.
package dataset

import "strings"

// Row maps a column name to its value.
type Row map[string]Value

// Get returns the value for col, or null when absent.
func (r Row) Get(col string) Value {
	if v, ok := r[col]; ok {
		return v
	}
	return NullValue()
}

// Text returns the trimmed text of col.
func (r Row) Text(col string) string {
	return strings.TrimSpace(r.Get(col).String())
}

// Clone returns a shallow copy; values are immutable.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered set of rows sharing one header.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given header.
func New(name string, columns []string) *Table {
	return &Table{Name: name, Columns: append([]string(nil), columns...)}
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Has reports whether col is in the header.
func (t *Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Missing returns the required columns absent from the header, in the order given.
func (t *Table) Missing(required []string) []string {
	var out []string
	for _, c := range required {
		if !t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Append adds r, keeping only header columns and filling gaps with null.
func (t *Table) Append(r Row) {
	row := make(Row, len(t.Columns))
	for _, c := range t.Columns {
		row[c] = r.Get(c)
	}
	t.Rows = append(t.Rows, row)
}

// AddColumn extends the header; existing rows get null.
func (t *Table) AddColumn(col string) {
	if t.Has(col) {
		return
	}
	t.Columns = append(t.Columns, col)
	for _, r := range t.Rows {
		r[col] = NullValue()
	}
}

// Clone copies header and rows so the result can be modified freely.
func (t *Table) Clone() *Table {
	out := New(t.Name, t.Columns)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Head returns at most n leading rows in order.
func (t *Table) Head(n int) *Table {
	out := New(t.Name, t.Columns)
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n > 0 {
		out.Rows = append(out.Rows, t.Rows[:n]...)
	}
	return out
}

// Records renders rows as plain maps in header order for JSON payloads.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			rec[c] = r.Get(c).Interface()
		}
		out = append(out, rec)
	}
	return out
}
