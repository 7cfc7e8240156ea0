package reconcile

import (
	"backfill/internal/table"
)

// Suffixes applied to status columns when the staging and goods issue pivots are merged
const (
	SuffixStaging = "_Staging"
	SuffixGI      = "_GI"
)

// GrandTotal is the name of the synthetic row total column
const GrandTotal = "Grand Total"

// Pivot is a count pivot: one row per key, one column per distinct value of
// a grouping field. Columns depend on the data, so cells are kept in a map.
type Pivot struct {
	KeyColumn string
	Keys      []string
	Columns   []string

	keyValues map[string]table.Value
	values    map[string]map[string]float64
}

func newPivot(keyColumn string) *Pivot {
	return &Pivot{
		KeyColumn: keyColumn,
		keyValues: make(map[string]table.Value),
		values:    make(map[string]map[string]float64),
	}
}

func (p *Pivot) add(key table.Value, column string, n float64) {
	k := key.Key()
	row, ok := p.values[k]
	if !ok {
		row = make(map[string]float64)
		p.values[k] = row
		p.keyValues[k] = key
	}
	row[column] += n
}

// seal fixes Keys and Columns in sorted order
func (p *Pivot) seal() *Pivot {
	cols := map[string]bool{}
	p.Keys = p.Keys[:0]
	for k, row := range p.values {
		p.Keys = append(p.Keys, k)
		for c := range row {
			cols[c] = true
		}
	}
	p.Columns = p.Columns[:0]
	for c := range cols {
		p.Columns = append(p.Columns, c)
	}
	table.SortKeys(p.Keys)
	table.SortKeys(p.Columns)
	return p
}

// Has reports whether key has a row
func (p *Pivot) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Value returns the cell for key and column, 0 when absent
func (p *Pivot) Value(key, column string) float64 {
	return p.values[key][column]
}

// Row returns a copy of the cells of key with every column present
func (p *Pivot) Row(key string) map[string]float64 {
	out := make(map[string]float64, len(p.Columns))
	for _, c := range p.Columns {
		out[c] = p.values[key][c]
	}
	return out
}

// RowTotal sums the cells of key
func (p *Pivot) RowTotal(key string) float64 {
	var total float64
	for _, v := range p.values[key] {
		total += v
	}
	return total
}

// KeyValue returns the typed key cell as it appeared in the source table
func (p *Pivot) KeyValue(key string) table.Value {
	if v, ok := p.keyValues[key]; ok {
		return v
	}
	return table.NewString(key)
}

// Table renders the pivot with the key as first column, optionally followed
// by a Grand Total column.
func (p *Pivot) Table(grandTotal bool) *table.Table {
	cols := append([]string{p.KeyColumn}, p.Columns...)
	if grandTotal {
		cols = append(cols, GrandTotal)
	}
	rows := make([][]table.Value, len(p.Keys))
	for i, k := range p.Keys {
		row := make([]table.Value, 0, len(cols))
		row = append(row, p.KeyValue(k))
		for _, c := range p.Columns {
			row = append(row, table.NewNumber(p.values[k][c]))
		}
		if grandTotal {
			row = append(row, table.NewNumber(p.RowTotal(k)))
		}
		rows[i] = row
	}
	return table.New(cols, rows)
}

// CountPivot counts the rows of t per (key, group) pair. Rows with a null
// key or group value are not counted.
func CountPivot(t *table.Table, keyColumn, groupColumn string) *Pivot {
	p := newPivot(keyColumn)
	for i := 0; i < t.NumRows(); i++ {
		key := t.Get(i, keyColumn)
		group := t.Get(i, groupColumn)
		if key.IsNull() || group.IsNull() {
			continue
		}
		p.add(key, group.Key(), 1)
	}
	return p.seal()
}

// MergePivots outer-joins the staging and goods issue pivots on their key.
// Every status column is suffixed with _Staging or _GI; missing cells are 0.
func MergePivots(staging, gi *Pivot) *Pivot {
	p := newPivot(staging.KeyColumn)
	for _, src := range []struct {
		pivot  *Pivot
		suffix string
	}{{staging, SuffixStaging}, {gi, SuffixGI}} {
		for _, k := range src.pivot.Keys {
			key := src.pivot.KeyValue(k)
			for _, c := range src.pivot.Columns {
				p.add(key, c+src.suffix, src.pivot.Value(k, c))
			}
		}
	}
	p.seal()

	// staging columns first, then goods issue, each in source order
	p.Columns = p.Columns[:0]
	for _, c := range staging.Columns {
		p.Columns = append(p.Columns, c+SuffixStaging)
	}
	for _, c := range gi.Columns {
		p.Columns = append(p.Columns, c+SuffixGI)
	}
	return p
}
