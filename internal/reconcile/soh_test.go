package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "backfill/internal/errors"
	"backfill/internal/table"
)

var sohColumns = []string{"Product", "Owner", "Quantity", "Stock Type", "Storage Type"}

func TestAggregateSOHOwnerColumns(t *testing.T) {
	soh := tbl(sohColumns,
		[]any{"P1", "MR9191", 10, "F1", "0010"},
		[]any{"P1", "MR9192", 0, "F2", "0020"},
	)
	pmr := tbl([]string{"Manufacturing Order", "Product"},
		[]any{"MO1", "P1"},
		[]any{"MO2", "P1"},
		[]any{"MO3", "P2"},
	)

	agg := AggregateSOH(soh, pmr, DefaultOptions())
	assert.Empty(t, agg.Warnings)
	assert.Equal(t, []string{"Manufacturing Order", "Product", "9191", "9192"}, agg.PMR.Columns())
	assert.Equal(t, []string{"10", "10", "0"}, column(t, agg.PMR, "9191"))
	assert.Equal(t, []string{"0", "0", "0"}, column(t, agg.PMR, "9192"))

	assert.Equal(t, []string{"Product", "MR9191", "MR9192"}, agg.Pivot.Columns())
	assert.Equal(t, [][]string{
		{"Product", "MR9191", "MR9192"},
		{"P1", "10", "0"},
	}, agg.Pivot.Records())
}

func TestAggregateSOHPrefersExactColumnNames(t *testing.T) {
	soh := tbl([]string{"Product Description", "Product", "Owner", "Available Quantity", "Quantity", "Stock Type", "Storage Type"},
		[]any{"Widget", "P1", "MR9191", 99, 10, "F1", "0010"},
	)
	pmr := tbl([]string{"Manufacturing Order", "Product Description", "Product"},
		[]any{"MO1", "Widget", "P1"},
	)

	agg := AggregateSOH(soh, pmr, DefaultOptions())
	assert.Empty(t, agg.Warnings)
	assert.Equal(t, []string{"10"}, column(t, agg.PMR, "9191"))
	assert.Equal(t, [][]string{
		{"Product", "MR9191"},
		{"P1", "10"},
	}, agg.Pivot.Records())

	t.Run("substring fallback without exact name", func(t *testing.T) {
		soh := tbl([]string{"Material", "Owner", "Qty", "Stock Type", "Storage Type"},
			[]any{"P1", "MR9192", 4, "F1", "0010"},
		)
		pmr := tbl([]string{"Manufacturing Order", "Material"}, []any{"MO1", "P1"})

		agg := AggregateSOH(soh, pmr, DefaultOptions())
		assert.Equal(t, []string{"4"}, column(t, agg.PMR, "9192"))
	})
}

func TestAggregateSOHFilters(t *testing.T) {
	soh := tbl(sohColumns,
		[]any{"P1", "MR9191", 1, "F1", "0010"},
		[]any{"P1", "MR9191", 2, "f4", "9020"},
		[]any{"P1", "MR9191", 4, "Q4", "1000"},
		[]any{"P1", "MR9191", 8, "B1", "0010"},
		[]any{"P1", "MR9191", 16, "F1", "0011"},
		[]any{"P1", "MR9191", 32, nil, "0010"},
		[]any{"P1", "MR9191", 64, "F1", nil},
		[]any{"P1", "MR9192", 0.1, "Q3", "0010"},
		[]any{"P1", "MR9192", 0.2, "Q3", "0010"},
		[]any{"P2", "OTHER", 5, "F1", "0010"},
	)
	pmr := tbl([]string{"Product"}, []any{"P1"}, []any{"P2"})

	agg := AggregateSOH(soh, pmr, DefaultOptions())
	assert.Equal(t, 6, agg.Raw.NumRows())
	assert.Equal(t, soh.Columns(), agg.Raw.Columns())

	assert.Equal(t, []string{"7", "0"}, column(t, agg.PMR, "9191"))
	assert.Equal(t, []string{"0.3", "0"}, column(t, agg.PMR, "9192"))

	assert.Equal(t, []string{"Product", "MR9191", "MR9192", "OTHER"}, agg.Pivot.Columns())
}

func TestAggregateSOHNeverNull(t *testing.T) {
	pmr := tbl([]string{"Material", "Manufacturing Order"},
		[]any{"P1", "MO1"},
		[]any{nil, "MO2"},
		[]any{"P9", "MO3"},
	)

	tests := []struct {
		name     string
		soh      func() *table.Table
		warnings int
	}{
		{"no soh", func() *table.Table { return nil }, 1},
		{"soh missing owner", func() *table.Table { return tbl([]string{"Product", "Quantity", "Stock Type", "Storage Type"}) }, 1},
		{"owners absent", func() *table.Table {
			return tbl(sohColumns, []any{"P1", "MR1000", 3, "F1", "0010"})
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := AggregateSOH(tt.soh(), pmr, DefaultOptions())
			assert.Len(t, agg.Warnings, tt.warnings)
			for _, w := range agg.Warnings {
				assert.True(t, apperrors.IsLookupMiss(w))
				assert.Equal(t, "soh", w.Context["stage"])
			}
			for _, col := range []string{"9191", "9192"} {
				vals, ok := agg.PMR.Column(col)
				require.True(t, ok)
				for _, v := range vals {
					assert.GreaterOrEqual(t, number(t, v), float64(0))
				}
			}
			assert.Equal(t, pmr.NumRows(), agg.PMR.NumRows())
		})
	}
}

func TestAggregateSOHPMRWithoutProduct(t *testing.T) {
	soh := tbl(sohColumns,
		[]any{"P1", "MR9191", 10, "F1", "0010"},
		[]any{"P1", "MR9192", 1, "F1", "0010"},
	)
	pmr := tbl([]string{"Manufacturing Order"}, []any{"MO1"})

	agg := AggregateSOH(soh, pmr, DefaultOptions())
	require.Len(t, agg.Warnings, 1)
	assert.Contains(t, agg.Warnings[0].Message, "no product column")
	assert.Equal(t, []string{"0"}, column(t, agg.PMR, "9191"))
}

func TestAggregateSOHReplacesOwnerColumns(t *testing.T) {
	soh := tbl(sohColumns, []any{"P1", "MR9191", 10, "F1", "0010"})
	pmr := tbl([]string{"Product", "9191"}, []any{"P1", 99})

	agg := AggregateSOH(soh, pmr, DefaultOptions())
	assert.Equal(t, []string{"Product", "9191", "9192"}, agg.PMR.Columns())
	assert.Equal(t, []string{"10"}, column(t, agg.PMR, "9191"))
}

func TestQuantityOf(t *testing.T) {
	assert.Equal(t, "12.5", quantityOf(tbl([]string{"q"}, []any{12.5}).At(0, 0)).String())
	assert.Equal(t, "1234.5", quantityOf(tbl([]string{"q"}, []any{"1,234.5"}).At(0, 0)).String())
	assert.Equal(t, "0", quantityOf(tbl([]string{"q"}, []any{"n/a"}).At(0, 0)).String())
	assert.Equal(t, "0", quantityOf(tbl([]string{"q"}, []any{nil}).At(0, 0)).String())
}
