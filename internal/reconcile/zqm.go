package reconcile

import (
	"strings"

	apperrors "backfill/internal/errors"
	"backfill/internal/table"
)

const (
	ColGRQty  = "GR Qty"
	ColStatus = "Status"
)

// requireColumn resolves a mandatory column by name or fails with a SchemaError
func requireColumn(t *table.Table, tableName, column string) (string, error) {
	if col, ok := table.ColumnNamed(t, column); ok {
		return col, nil
	}
	return "", apperrors.NewSchemaError(tableName, column, table.Suggest(t, column))
}

// FilterZQM keeps released, not technically completed orders with nothing
// received yet: GR Qty == 0, Status contains "rel" and not "teco", any case.
// Row order is preserved.
func FilterZQM(zqm *table.Table) (*table.Table, error) {
	qtyCol, err := requireColumn(zqm, "ZQM", ColGRQty)
	if err != nil {
		return nil, err
	}
	statusCol, err := requireColumn(zqm, "ZQM", ColStatus)
	if err != nil {
		return nil, err
	}

	return zqm.Filter(func(r table.Row) bool {
		qty, ok := r.Get(qtyCol).Float()
		if !ok || qty != 0 {
			return false
		}
		status := r.Get(statusCol)
		if status.IsNull() {
			return false
		}
		s := strings.ToLower(status.String())
		return strings.Contains(s, "rel") && !strings.Contains(s, "teco")
	}), nil
}
