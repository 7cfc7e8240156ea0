package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"backfill/internal/table"
)

// tbl builds a table; strings go through table.Infer, nil is null.
func tbl(cols []string, rows ...[]any) *table.Table {
	out := make([][]table.Value, len(rows))
	for i, row := range rows {
		vals := make([]table.Value, len(row))
		for j, c := range row {
			switch v := c.(type) {
			case nil:
				vals[j] = table.Null()
			case string:
				vals[j] = table.Infer(v)
			case int:
				vals[j] = table.NewNumber(float64(v))
			case float64:
				vals[j] = table.NewNumber(v)
			case time.Time:
				vals[j] = table.NewDate(v)
			default:
				panic(fmt.Sprintf("unsupported cell %T", c))
			}
		}
		out[i] = vals
	}
	return table.New(cols, out)
}

func column(t *testing.T, tb *table.Table, name string) []string {
	t.Helper()
	vals, ok := tb.Column(name)
	require.True(t, ok, "column %q missing in %v", name, tb.Columns())
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}

func number(t *testing.T, v table.Value) float64 {
	t.Helper()
	f, ok := v.Float()
	require.True(t, ok, "expected a number, got %v (%s)", v, v.Kind())
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var pmrColumns = []string{"Manufacturing Order", "Product", "Staging Status", "Goods Issue Status"}
