package table

import (
	"fmt"
	"strconv"
)

// Table is an immutable grid of typed cells with named columns.
// Every transform returns a new Table and leaves the receiver untouched.
type Table struct {
	columns []string
	rows    [][]Value
}

// New builds a table, padding or truncating rows to the column count.
func New(columns []string, rows [][]Value) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		rows:    make([][]Value, len(rows)),
	}
	for i, row := range rows {
		r := make([]Value, len(columns))
		copy(r, row)
		t.rows[i] = r
	}
	return t
}

// Empty returns a table with the given columns and no rows
func Empty(columns ...string) *Table {
	return New(columns, nil)
}

// Columns returns a copy of the column names in order
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// NumRows returns the number of data rows
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the number of columns
func (t *Table) NumCols() int { return len(t.columns) }

// ColumnIndex returns the position of the column with exactly this name
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// HasColumn reports whether a column with exactly this name exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// At returns the cell at row i, column j
func (t *Table) At(i, j int) Value { return t.rows[i][j] }

// Get returns the cell at row i in the named column; null if the column is absent
func (t *Table) Get(i int, column string) Value {
	j, ok := t.ColumnIndex(column)
	if !ok {
		return Null()
	}
	return t.rows[i][j]
}

// Row returns row i
func (t *Table) Row(i int) Row { return Row{t: t, i: i} }

// Column returns a copy of the named column's cells
func (t *Table) Column(name string) ([]Value, bool) {
	j, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, true
}

// Row is a read-only view over one table row
type Row struct {
	t *Table
	i int
}

// Index returns the row position in its table
func (r Row) Index() int { return r.i }

// Get returns the cell in the named column
func (r Row) Get(column string) Value { return r.t.Get(r.i, column) }

// At returns the cell at column j
func (r Row) At(j int) Value { return r.t.rows[r.i][j] }

// Filter keeps the rows for which keep returns true, in order
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{columns: t.Columns()}
	for i, row := range t.rows {
		if keep(Row{t: t, i: i}) {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// Drop removes the named columns; unknown names are ignored
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	var keep []int
	for j, c := range t.columns {
		if !drop[c] {
			keep = append(keep, j)
		}
	}
	return t.project(keep)
}

// Select projects onto the named columns in the given order
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	for k, n := range names {
		j, ok := t.ColumnIndex(n)
		if !ok {
			return nil, fmt.Errorf("column %q not found", n)
		}
		idx[k] = j
	}
	return t.project(idx), nil
}

func (t *Table) project(idx []int) *Table {
	out := &Table{
		columns: make([]string, len(idx)),
		rows:    make([][]Value, len(t.rows)),
	}
	for k, j := range idx {
		out.columns[k] = t.columns[j]
	}
	for i, row := range t.rows {
		r := make([]Value, len(idx))
		for k, j := range idx {
			r[k] = row[j]
		}
		out.rows[i] = r
	}
	return out
}

// Rename renames columns by old -> new; unknown names are ignored
func (t *Table) Rename(names map[string]string) *Table {
	out := &Table{columns: t.Columns(), rows: t.rows}
	for j, c := range out.columns {
		if n, ok := names[c]; ok {
			out.columns[j] = n
		}
	}
	return out
}

// Distinct drops rows equal to an earlier row, keeping first occurrences
func (t *Table) Distinct() *Table {
	out := &Table{columns: t.Columns()}
	seen := make(map[string]bool, len(t.rows))
	for _, row := range t.rows {
		k := rowKey(row)
		if seen[k] {
			continue
		}
		seen[k] = true
		out.rows = append(out.rows, row)
	}
	return out
}

// rowKey encodes kind and text so 1 and "1" stay distinct
func rowKey(row []Value) string {
	b := make([]byte, 0, 16*len(row))
	for _, v := range row {
		b = append(b, byte('0'+v.kind))
		b = strconv.AppendQuote(b, v.String())
	}
	return string(b)
}

// MapColumn returns a table with fn applied to every cell of the column
func (t *Table) MapColumn(name string, fn func(Value) Value) *Table {
	j, ok := t.ColumnIndex(name)
	if !ok {
		return t
	}
	out := &Table{columns: t.Columns(), rows: make([][]Value, len(t.rows))}
	for i, row := range t.rows {
		r := append([]Value(nil), row...)
		r[j] = fn(r[j])
		out.rows[i] = r
	}
	return out
}

// WithColumn replaces the named column in place, or appends it if absent.
// values must have one entry per row.
func (t *Table) WithColumn(name string, values []Value) *Table {
	if j, ok := t.ColumnIndex(name); ok {
		return t.setColumn(j, name, values)
	}
	return t.InsertColumn(len(t.columns), name, values)
}

// InsertColumn places a column at position pos, replacing any column of the same name.
func (t *Table) InsertColumn(pos int, name string, values []Value) *Table {
	base := t
	if base.HasColumn(name) {
		base = base.Drop(name)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(base.columns) {
		pos = len(base.columns)
	}

	out := &Table{
		columns: make([]string, 0, len(base.columns)+1),
		rows:    make([][]Value, len(base.rows)),
	}
	out.columns = append(out.columns, base.columns[:pos]...)
	out.columns = append(out.columns, name)
	out.columns = append(out.columns, base.columns[pos:]...)

	for i, row := range base.rows {
		r := make([]Value, 0, len(row)+1)
		r = append(r, row[:pos]...)
		r = append(r, valueAt(values, i))
		r = append(r, row[pos:]...)
		out.rows[i] = r
	}
	return out
}

func (t *Table) setColumn(j int, name string, values []Value) *Table {
	out := &Table{columns: t.Columns(), rows: make([][]Value, len(t.rows))}
	out.columns[j] = name
	for i, row := range t.rows {
		r := append([]Value(nil), row...)
		r[j] = valueAt(values, i)
		out.rows[i] = r
	}
	return out
}

func valueAt(values []Value, i int) Value {
	if i < len(values) {
		return values[i]
	}
	return Null()
}

// LeftJoin keeps every row of t and appends the columns of right (minus its
// key) matched on leftKey == rightKey by canonical key text. A left row with
// several matches is repeated once per match; a row without one gets nulls.
// Null keys never match. Right columns whose names collide with t get a
// ".1"-style suffix.
func (t *Table) LeftJoin(right *Table, leftKey, rightKey string) (*Table, error) {
	lj, ok := t.ColumnIndex(leftKey)
	if !ok {
		return nil, fmt.Errorf("left join key %q not found", leftKey)
	}
	rj, ok := right.ColumnIndex(rightKey)
	if !ok {
		return nil, fmt.Errorf("right join key %q not found", rightKey)
	}

	var carry []int
	for j := range right.columns {
		if j != rj {
			carry = append(carry, j)
		}
	}

	names := t.Columns()
	for _, j := range carry {
		names = append(names, right.columns[j])
	}
	out := &Table{columns: UniqueHeaders(names)}

	index := make(map[string][]int, len(right.rows))
	for i, row := range right.rows {
		if row[rj].IsNull() {
			continue
		}
		k := row[rj].Key()
		index[k] = append(index[k], i)
	}

	for _, row := range t.rows {
		var matches []int
		if !row[lj].IsNull() {
			matches = index[row[lj].Key()]
		}
		if len(matches) == 0 {
			r := make([]Value, len(out.columns))
			copy(r, row)
			out.rows = append(out.rows, r)
			continue
		}
		for _, m := range matches {
			r := make([]Value, 0, len(out.columns))
			r = append(r, row...)
			for _, j := range carry {
				r = append(r, right.rows[m][j])
			}
			out.rows = append(out.rows, r)
		}
	}
	return out, nil
}

// Records renders the table as text, header first
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.rows)+1)
	out = append(out, t.Columns())
	for _, row := range t.rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = v.String()
		}
		out = append(out, rec)
	}
	return out
}
