package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "backfill/internal/errors"
	"backfill/internal/table"
)

// SOH column names
const (
	ColStockType   = "Stock Type"
	ColStorageType = "Storage Type"
	ColProduct     = "Product"
	ColOwner       = "Owner"
	ColQuantity    = "Quantity"
)

const (
	fieldStockType   table.Field = "stock_type"
	fieldStorageType table.Field = "storage_type"
	fieldProduct     table.Field = "product"
	fieldOwner       table.Field = "owner"
	fieldQuantity    table.Field = "quantity"
)

var (
	sohFields = []table.FieldSpec{
		{Field: fieldStockType, Name: ColStockType, Synonyms: []string{"stock type"}},
		{Field: fieldStorageType, Name: ColStorageType, Synonyms: []string{"storage type"}},
		{Field: fieldProduct, Name: ColProduct, Synonyms: []string{"product", "material"}},
		{Field: fieldOwner, Name: ColOwner, Synonyms: []string{"owner"}},
		{Field: fieldQuantity, Name: ColQuantity, Synonyms: []string{"quantity", "qty"}},
	}
	pmrProductField = table.FieldSpec{Field: fieldProduct, Name: ColProduct, Synonyms: []string{"product", "material"}}
)

// SOHAggregate is the output of AggregateSOH
type SOHAggregate struct {
	// Raw holds the SOH rows that passed the stock and storage type filters
	Raw *table.Table
	// Pivot is Product x Owner summed quantity
	Pivot *table.Table
	// PMR is the input PMR with one numeric column per owner bucket
	PMR      *table.Table
	Warnings []*apperrors.AppError
}

// AggregateSOH filters SOH to usable stock, pivots quantity by product and
// owner, and writes each owner bucket onto PMR by product. Owner columns are
// always numeric and zero when nothing matches; aggregation never fails.
func AggregateSOH(soh, pmr *table.Table, opts Options) *SOHAggregate {
	out := &SOHAggregate{}
	sums := map[string]map[string]decimal.Decimal{}

	if soh == nil {
		out.warn("no SOH table available; owner columns set to 0")
		out.Raw = table.Empty()
		out.Pivot = table.Empty(ColProduct)
	} else {
		schema := table.ResolveSchema(soh, sohFields...)
		if missing := schema.Missing(); len(missing) > 0 {
			out.warn(fmt.Sprintf("SOH is missing columns %v; owner columns set to 0", missing))
			out.Raw = table.Empty(soh.Columns()...)
			out.Pivot = table.Empty(ColProduct)
		} else {
			out.Raw = filterSOH(soh, schema, opts)
			sums = sumByProductOwner(out.Raw, schema)
			out.Pivot = pivotTable(sums)
		}
	}

	out.PMR = annotateOwners(pmr, sums, opts.Owners, out)
	return out
}

func (a *SOHAggregate) warn(msg string) {
	a.Warnings = append(a.Warnings, apperrors.NewLookupMiss(stageSOH, msg))
}

func filterSOH(soh *table.Table, schema table.Schema, opts Options) *table.Table {
	stockCol, _ := schema.Column(fieldStockType)
	storageCol, _ := schema.Column(fieldStorageType)

	stock := toSet(opts.StockTypes, strings.ToUpper)
	storage := toSet(opts.StorageTypes, nil)

	return soh.Filter(func(r table.Row) bool {
		st := r.Get(stockCol)
		if st.IsNull() || !stock[strings.ToUpper(st.Key())] {
			return false
		}
		sg := r.Get(storageCol)
		return !sg.IsNull() && storage[sg.Key()]
	})
}

func sumByProductOwner(rows *table.Table, schema table.Schema) map[string]map[string]decimal.Decimal {
	productCol, _ := schema.Column(fieldProduct)
	ownerCol, _ := schema.Column(fieldOwner)
	qtyCol, _ := schema.Column(fieldQuantity)

	sums := make(map[string]map[string]decimal.Decimal)
	for i := 0; i < rows.NumRows(); i++ {
		product := rows.Get(i, productCol)
		owner := rows.Get(i, ownerCol)
		if product.IsNull() || owner.IsNull() {
			continue
		}
		qty := quantityOf(rows.Get(i, qtyCol))

		byOwner, ok := sums[product.Key()]
		if !ok {
			byOwner = make(map[string]decimal.Decimal)
			sums[product.Key()] = byOwner
		}
		byOwner[owner.Key()] = byOwner[owner.Key()].Add(qty)
	}
	return sums
}

// quantityOf reads numeric cells and numeric text; anything else counts as zero
func quantityOf(v table.Value) decimal.Decimal {
	if f, ok := v.Float(); ok {
		return decimal.NewFromFloat(f)
	}
	if d, err := decimal.NewFromString(strings.ReplaceAll(v.Key(), ",", "")); err == nil {
		return d
	}
	return decimal.Zero
}

// pivotTable renders sums as Product plus one column per owner, both sorted
func pivotTable(sums map[string]map[string]decimal.Decimal) *table.Table {
	products := make([]string, 0, len(sums))
	ownerSet := map[string]bool{}
	for p, byOwner := range sums {
		products = append(products, p)
		for o := range byOwner {
			ownerSet[o] = true
		}
	}
	owners := make([]string, 0, len(ownerSet))
	for o := range ownerSet {
		owners = append(owners, o)
	}
	table.SortKeys(products)
	table.SortKeys(owners)

	rows := make([][]table.Value, len(products))
	for i, p := range products {
		row := make([]table.Value, 0, len(owners)+1)
		row = append(row, table.NewString(p))
		for _, o := range owners {
			row = append(row, table.NewNumber(sums[p][o].InexactFloat64()))
		}
		rows[i] = row
	}
	return table.New(append([]string{ColProduct}, owners...), rows)
}

func annotateOwners(pmr *table.Table, sums map[string]map[string]decimal.Decimal, buckets []OwnerBucket, agg *SOHAggregate) *table.Table {
	productCol, ok := table.ResolveSchema(pmr, pmrProductField).Column(fieldProduct)
	if !ok {
		agg.warn("PMR has no product column; owner columns set to 0")
	}

	if len(sums) > 0 {
		present := map[string]bool{}
		for _, byOwner := range sums {
			for o := range byOwner {
				present[o] = true
			}
		}
		for _, b := range buckets {
			if !present[b.Owner] {
				agg.warn(fmt.Sprintf("SOH has no stock for owner %s; column %s set to 0", b.Owner, b.Column))
			}
		}
	}

	out := pmr
	for _, b := range buckets {
		values := make([]table.Value, pmr.NumRows())
		for i := range values {
			total := decimal.Zero
			if ok {
				if p := pmr.Get(i, productCol); !p.IsNull() {
					total = sums[p.Key()][b.Owner]
				}
			}
			values[i] = table.NewNumber(total.InexactFloat64())
		}
		out = out.WithColumn(b.Column, values)
	}
	return out
}

func toSet(values []string, fold func(string) string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold != nil {
			v = fold(v)
		}
		set[v] = true
	}
	return set
}
