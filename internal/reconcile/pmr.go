package reconcile

import (
	"fmt"
	"strings"
	"time"

	apperrors "backfill/internal/errors"
	"backfill/internal/table"
)

// Canonical names of the columns carried from ZQM onto PMR
const (
	ColManufacturingOrder = "Manufacturing Order"
	ColBasicStart         = "Basic start date"
	ColBasicFinish        = "Basic finish date"
	ColSerial             = "Serial Number"
)

// PMRDropColumns are removed from PMR by exact name before enrichment
var PMRDropColumns = []string{
	"Blocked (Overall)",
	"Stock Type",
	"Unit of Measure",
	"Document Number",
	"Operation or Activity",
	"Stor. Bin of Goods Mvt Posting",
	"Party Entitled to Dispose",
	"Production Supply Area",
	"Reservation Number",
	"Staging Method",
	"Requirement Start Date",
}

const (
	fieldOrder  table.Field = "order"
	fieldStart  table.Field = "start"
	fieldFinish table.Field = "finish"
	fieldSerial table.Field = "serial"
)

var (
	zqmFields = []table.FieldSpec{
		{Field: fieldOrder, Name: ColManufacturingOrder, Synonyms: []string{"manufacturing order", "order"}},
		{Field: fieldStart, Name: ColBasicStart, Synonyms: []string{"basic start", "start"}},
		{Field: fieldFinish, Name: ColBasicFinish, Synonyms: []string{"basic finish", "finish"}},
		{Field: fieldSerial, Name: ColSerial, Synonyms: []string{"serial"}},
	}
	orderField = table.FieldSpec{Field: fieldOrder, Name: ColManufacturingOrder, Synonyms: []string{"manufacturing order", "order"}}
)

// Enrichment is the output of EnrichPMR
type Enrichment struct {
	Table *table.Table
	// Joined is false when the ZQM join was skipped
	Joined bool
	// Matched counts PMR rows that found at least one ZQM combination
	Matched int
	// Ambiguous lists orders with more than one distinct ZQM combination
	Ambiguous []string
	Warnings  []*apperrors.AppError
}

// EnrichPMR drops noise columns from PMR and left-joins the basic start and
// finish dates (and serial number when present) from the full ZQM table.
// Every step degrades to a warning; enrichment never fails.
func EnrichPMR(pmr, zqm *table.Table, opts Options) *Enrichment {
	out := &Enrichment{Table: pmr.Drop(PMRDropColumns...)}

	if zqm == nil {
		out.warn("no ZQM table available; dates not added")
		return out
	}

	schema := table.ResolveSchema(zqm, zqmFields...)
	for _, f := range []table.Field{fieldOrder, fieldStart, fieldFinish} {
		if !schema.Has(f) {
			out.warn(fmt.Sprintf("ZQM has no %s column; dates not added", f))
			return out
		}
	}

	pmrOrder, ok := table.ResolveSchema(out.Table, orderField).Column(fieldOrder)
	if !ok {
		if !out.Table.HasColumn(ColManufacturingOrder) {
			out.warn("PMR has no order column; dates not added")
			return out
		}
		pmrOrder = ColManufacturingOrder
	}

	sub, err := zqmSubTable(zqm, schema)
	if err != nil {
		out.warn(err.Error())
		return out
	}
	if !schema.Has(fieldSerial) {
		out.warn("ZQM has no serial column; Serial Number not added")
	}

	out.Ambiguous = ambiguousOrders(sub)
	if len(out.Ambiguous) > 0 {
		w := apperrors.NewLookupMiss(stagePMR,
			fmt.Sprintf("%d orders have more than one distinct ZQM date combination", len(out.Ambiguous))).
			WithContext("orders", out.Ambiguous).
			WithContext("policy", string(opts.DuplicatePolicy))
		out.Warnings = append(out.Warnings, w)
		if opts.DuplicatePolicy == LatestFinish {
			sub = keepLatestFinish(sub)
		}
	}

	// re-enriching an already enriched PMR replaces the previous columns
	base := out.Table
	for _, c := range []string{ColBasicStart, ColBasicFinish, ColSerial} {
		if c != pmrOrder {
			base = base.Drop(c)
		}
	}

	joined, err := base.LeftJoin(sub, pmrOrder, ColManufacturingOrder)
	if err != nil {
		out.warn(err.Error())
		return out
	}
	out.Table = joined
	out.Joined = true
	out.Matched = countMatched(base, sub, pmrOrder)
	return out
}

func (e *Enrichment) warn(msg string) {
	e.Warnings = append(e.Warnings, apperrors.NewLookupMiss(stagePMR, msg))
}

// zqmSubTable projects ZQM to the distinct (order, start, finish[, serial])
// rows with canonical names and MM/DD/YYYY dates. Rows without an order are dropped.
func zqmSubTable(zqm *table.Table, schema table.Schema) (*table.Table, error) {
	order, _ := schema.Column(fieldOrder)
	start, _ := schema.Column(fieldStart)
	finish, _ := schema.Column(fieldFinish)

	cols := []string{order, start, finish}
	names := []string{ColManufacturingOrder, ColBasicStart, ColBasicFinish}
	if serial, ok := schema.Column(fieldSerial); ok {
		cols = append(cols, serial)
		names = append(names, ColSerial)
	}

	sub, err := zqm.Select(cols...)
	if err != nil {
		return nil, err
	}
	sub = sub.Filter(func(r table.Row) bool { return !r.At(0).IsNull() })

	rows := make([][]table.Value, sub.NumRows())
	for i := range rows {
		row := make([]table.Value, len(cols))
		for j := range cols {
			row[j] = sub.At(i, j)
		}
		row[1] = table.FormatUSDate(row[1])
		row[2] = table.FormatUSDate(row[2])
		rows[i] = row
	}
	return table.New(names, rows).Distinct(), nil
}

// ambiguousOrders returns, sorted, the orders with more than one row in sub
func ambiguousOrders(sub *table.Table) []string {
	counts := make(map[string]int, sub.NumRows())
	for i := 0; i < sub.NumRows(); i++ {
		counts[sub.At(i, 0).Key()]++
	}
	var out []string
	for k, c := range counts {
		if c > 1 {
			out = append(out, k)
		}
	}
	table.SortKeys(out)
	return out
}

// keepLatestFinish keeps one row per order: latest finish, then latest start,
// then first seen.
func keepLatestFinish(sub *table.Table) *table.Table {
	best := make(map[string]int)
	var order []string
	for i := 0; i < sub.NumRows(); i++ {
		k := sub.At(i, 0).Key()
		j, seen := best[k]
		if !seen {
			best[k] = i
			order = append(order, k)
			continue
		}
		if laterRow(sub, i, j) {
			best[k] = i
		}
	}

	keep := make(map[int]bool, len(best))
	for _, k := range order {
		keep[best[k]] = true
	}
	return sub.Filter(func(r table.Row) bool { return keep[r.Index()] })
}

func laterRow(sub *table.Table, i, j int) bool {
	if c := compareDates(sub.At(i, 2), sub.At(j, 2)); c != 0 {
		return c > 0
	}
	return compareDates(sub.At(i, 1), sub.At(j, 1)) > 0
}

// compareDates orders MM/DD/YYYY cells; null sorts first
func compareDates(a, b table.Value) int {
	ta, okA := parseUS(a)
	tb, okB := parseUS(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	case ta.Before(tb):
		return -1
	case ta.After(tb):
		return 1
	}
	return 0
}

func parseUS(v table.Value) (time.Time, bool) {
	if v.IsNull() {
		return time.Time{}, false
	}
	t, err := time.Parse(table.USDateLayout, strings.TrimSpace(v.String()))
	return t, err == nil
}

func countMatched(pmr, sub *table.Table, pmrOrder string) int {
	keys := make(map[string]bool, sub.NumRows())
	for i := 0; i < sub.NumRows(); i++ {
		keys[sub.At(i, 0).Key()] = true
	}
	matched := 0
	for i := 0; i < pmr.NumRows(); i++ {
		v := pmr.Get(i, pmrOrder)
		if !v.IsNull() && keys[v.Key()] {
			matched++
		}
	}
	return matched
}
