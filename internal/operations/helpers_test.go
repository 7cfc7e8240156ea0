package operations

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"backfill/internal/infrastructure"
	"backfill/internal/reconcile"
	"backfill/internal/table"
	"backfill/pkg/contracts/domain"
)

// sheet builds a table the way the loader types text cells
func sheet(columns []string, rows ...[]string) *table.Table {
	values := make([][]table.Value, len(rows))
	for i, row := range rows {
		values[i] = make([]table.Value, len(row))
		for j, cell := range row {
			values[i][j] = table.Infer(cell)
		}
	}
	return table.New(columns, values)
}

func zqmUpload() *Upload {
	return &Upload{FileName: "zqm.xlsx", Size: 10, Table: sheet(
		[]string{"Order", "Basic start date", "Basic finish date", "GR Qty", "Status"},
		[]string{"MO100", "01/02/2024", "01/09/2024", "0", "REL"},
		[]string{"MO200", "02/02/2024", "02/09/2024", "0", "REL TECO"},
		[]string{"MO300", "03/02/2024", "03/09/2024", "5", "REL"},
	)}
}

func pmrUpload() *Upload {
	return &Upload{FileName: "pmr.xlsx", Size: 20, Table: sheet(
		[]string{"Manufacturing Order", "Product", "Staging Status", "Goods Issue Status"},
		[]string{"MO100", "P1", "Completed", "Completed"},
		[]string{"MO100", "P2", "Completed", "Completed"},
		[]string{"MO200", "P1", "Not Started", "Not Started"},
		[]string{"MO300", "P3", "Partially Completed", "Not Started"},
	)}
}

func sohUpload() *Upload {
	return &Upload{FileName: "soh.xlsx", Size: 30, Table: sheet(
		[]string{"Product", "Owner", "Quantity", "Stock Type", "Storage Type"},
		[]string{"P1", "MR9191", "10", "F1", "0010"},
		[]string{"P1", "MR9192", "0", "F1", "0010"},
		[]string{"P3", "MR9192", "4", "Q3", "2020"},
	)}
}

func newTestSession() *Session {
	return NewSession("s-1", reconcile.DefaultOptions(), time.Hour, time.Now())
}

func newTestManager() *Manager {
	return NewManager(NewDefaultRegistry(), nil, infrastructure.NewLogger("error", io.Discard))
}

// runAll runs the three stages in order
func runAll(t *testing.T, m *Manager, s *Session) {
	t.Helper()
	ctx := context.Background()
	for _, step := range []struct {
		id domain.StageID
		in *Upload
	}{
		{domain.StageZQM, zqmUpload()},
		{domain.StagePMR, pmrUpload()},
		{domain.StageSOH, sohUpload()},
	} {
		_, err := m.Run(ctx, s, step.id, step.in)
		require.NoError(t, err, step.id)
	}
}
