package reconcile

import (
	"fmt"
	"strings"

	apperrors "backfill/internal/errors"
	"backfill/internal/table"
	"backfill/pkg/contracts/domain"
)

// ColHit is the classification column written onto PMR and the merged pivot
const ColHit = "Hit"

const (
	fieldStaging    table.Field = "staging_status"
	fieldGoodsIssue table.Field = "goods_issue_status"
)

var classifyFields = []table.FieldSpec{
	orderField,
	{Field: fieldStaging, Name: "Staging Status", Synonyms: []string{"staging status"}},
	{Field: fieldGoodsIssue, Name: "Goods Issue Status", Synonyms: []string{"goods issue status", "goods issue", "gi status"}},
}

// Classification is the output of ClassifyPMR
type Classification struct {
	Staging    *Pivot
	GoodsIssue *Pivot
	Merged     *Pivot

	// Hits maps each pivoted order key to its status
	Hits map[string]domain.HitStatus
	// Annotated is PMR with Hit as the leading column
	Annotated *table.Table
	// Combined is the merged pivot with Hit as the last column
	Combined *table.Table
	// Unclassified lists PMR row indexes whose order has no pivot row
	Unclassified []int
	// Counts is the number of orders per status
	Counts   map[domain.HitStatus]int
	Warnings []*apperrors.AppError
}

// ClassifyPMR pivots PMR by staging and goods issue status per order,
// classifies every order and writes the result back onto each PMR row.
// A missing order, staging or goods issue column is a SchemaError.
func ClassifyPMR(pmr *table.Table) (*Classification, error) {
	schema := table.ResolveSchema(pmr, classifyFields...)
	orderCol, ok := schema.Column(fieldOrder)
	if !ok {
		return nil, apperrors.NewSchemaError("PMR", ColManufacturingOrder, table.Suggest(pmr, ColManufacturingOrder))
	}
	stagingCol, ok := schema.Column(fieldStaging)
	if !ok {
		return nil, apperrors.NewSchemaError("PMR", "Staging Status", table.Suggest(pmr, "Staging Status"))
	}
	giCol, ok := schema.Column(fieldGoodsIssue)
	if !ok {
		return nil, apperrors.NewSchemaError("PMR", "Goods Issue Status", table.Suggest(pmr, "Goods Issue Status"))
	}

	// a previous Hit column must not leak into the pivots or the output
	pmr = pmr.Drop(ColHit)

	c := &Classification{
		Staging:    CountPivot(pmr, orderCol, stagingCol),
		GoodsIssue: CountPivot(pmr, orderCol, giCol),
		Hits:       make(map[string]domain.HitStatus),
		Counts:     make(map[domain.HitStatus]int, len(domain.HitStatuses)),
	}
	c.Staging.KeyColumn = ColManufacturingOrder
	c.GoodsIssue.KeyColumn = ColManufacturingOrder
	c.Merged = MergePivots(c.Staging, c.GoodsIssue)

	hitValues := make([]table.Value, len(c.Merged.Keys))
	for i, key := range c.Merged.Keys {
		hit := Classify(c.Merged.Row(key))
		c.Hits[key] = hit
		c.Counts[hit]++
		hitValues[i] = table.NewString(string(hit))
	}
	c.Combined = c.Merged.Table(false).WithColumn(ColHit, hitValues)

	c.Annotated, c.Unclassified = Annotate(pmr, orderCol, c.Hits)
	if len(c.Unclassified) > 0 {
		w := apperrors.NewLookupMiss(stageClassify,
			fmt.Sprintf("%d PMR rows have no order to classify", len(c.Unclassified))).
			WithContext("rows", rowNumbers(c.Unclassified))
		c.Warnings = append(c.Warnings, w)
	}
	return c, nil
}

// Annotate inserts Hit as the leading column of t, looked up by the order in
// orderCol. Rows without a known order get a null Hit and are returned.
func Annotate(t *table.Table, orderCol string, hits map[string]domain.HitStatus) (*table.Table, []int) {
	values := make([]table.Value, t.NumRows())
	var missing []int
	for i := range values {
		order := t.Get(i, orderCol)
		hit, ok := hits[order.Key()]
		if order.IsNull() || !ok {
			values[i] = table.Null()
			missing = append(missing, i)
			continue
		}
		values[i] = table.NewString(string(hit))
	}
	return t.InsertColumn(0, ColHit, values), missing
}

// Classify derives the Hit of one merged pivot row. Column names carry a
// _Staging or _GI suffix; rules are applied in order and the first match wins:
//
//	a. any "partially completed" column is positive: Pulled
//	b. only "completed" and "not relevant" columns are nonzero, and both the
//	   staging and goods issue side have Completed or Not Relevant: Completed
//	c. only "not started" columns are nonzero and one is positive: Not Pulled
//	d. otherwise: Pulled
func Classify(counts map[string]float64) domain.HitStatus {
	for col, n := range counts {
		if n > 0 && strings.Contains(strings.ToLower(col), "partially completed") {
			return domain.HitPulled
		}
	}

	if onlyNonzero(counts, "completed", "not relevant") &&
		doneOn(counts, SuffixStaging) && doneOn(counts, SuffixGI) {
		return domain.HitCompleted
	}

	if onlyNonzero(counts, "not started") {
		for col, n := range counts {
			if n > 0 && strings.Contains(strings.ToLower(col), "not started") {
				return domain.HitNotPulled
			}
		}
	}

	return domain.HitPulled
}

// onlyNonzero reports whether every nonzero column name contains one of names
func onlyNonzero(counts map[string]float64, names ...string) bool {
	for col, n := range counts {
		if n == 0 {
			continue
		}
		lc := strings.ToLower(col)
		found := false
		for _, name := range names {
			if strings.Contains(lc, name) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// doneOn reports whether Completed or Not Relevant is positive on one side
func doneOn(counts map[string]float64, suffix string) bool {
	for col, n := range counts {
		if n <= 0 || !strings.HasSuffix(col, suffix) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(strings.TrimSuffix(col, suffix))) {
		case "completed", "not relevant":
			return true
		}
	}
	return false
}

// rowNumbers converts row indexes to spreadsheet row numbers, header on row 1
func rowNumbers(idx []int) []int {
	out := make([]int, len(idx))
	for i, r := range idx {
		out[i] = r + 2
	}
	return out
}
