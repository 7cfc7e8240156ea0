package exporter

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"backfill/internal/config"
	apperrors "backfill/internal/errors"
	"backfill/internal/reconcile"
	"backfill/internal/shared/testutil"
	"backfill/internal/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

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

func finishedRun(t *testing.T) *reconcile.Result {
	t.Helper()
	res, err := reconcile.Run(reconcile.Input{
		ZQM: sheet([]string{"Order", "Basic start date", "Basic finish date", "GR Qty", "Status"},
			[]string{"MO100", "01/02/2024", "01/09/2024", "0", "REL"},
			[]string{"MO200", "02/02/2024", "02/09/2024", "0", "REL TECO"},
			[]string{"MO300", "03/02/2024", "03/09/2024", "5", "REL"},
		),
		PMR: sheet([]string{"Manufacturing Order", "Product", "Staging Status", "Goods Issue Status"},
			[]string{"MO100", "P1", "Completed", "Completed"},
			[]string{"MO100", "P2", "Completed", "Completed"},
			[]string{"MO200", "P1", "Not Started", "Not Started"},
			[]string{"MO300", "P3", "Partially Completed", "Not Started"},
		),
		SOH: sheet([]string{"Product", "Owner", "Quantity", "Stock Type", "Storage Type"},
			[]string{"P1", "MR9191", "10", "F1", "0010"},
			[]string{"P1", "MR9192", "0", "F1", "0010"},
			[]string{"P3", "MR9192", "4", "Q3", "2020"},
			[]string{"P9", "MR9191", "7", "X9", "0010"},
		),
	}, reconcile.DefaultOptions())
	require.NoError(t, err)
	return res
}

// fillOf returns the fill color of a cell as RRGGBB, or "" when unfilled
func fillOf(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	id, err := f.GetCellStyle(sheet, cell)
	require.NoError(t, err)
	if id == 0 {
		return ""
	}
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	if len(style.Fill.Color) == 0 {
		return ""
	}
	c := strings.ToUpper(strings.TrimPrefix(style.Fill.Color[0], "#"))
	if len(c) > 6 {
		c = c[len(c)-6:]
	}
	return c
}

func hex(color string) string {
	return strings.TrimPrefix(color, "#")
}

func TestBuildReport(t *testing.T) {
	res := finishedRun(t)
	opts := NewReportOptions(config.Default().Export, reconcile.DefaultOptions())

	data, err := BuildReport(res, opts, quiet)
	require.NoError(t, err)
	f := testutil.OpenXLSX(t, data)

	assert.Equal(t, []string{SheetMaster, SheetSOHRaw, SheetSOHPivot, SheetPivotSummary, SheetCombinedPivot}, f.GetSheetList())

	t.Run("master", func(t *testing.T) {
		rows, err := f.GetRows(SheetMaster)
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, []string{
			"Hit", "Manufacturing Order", "Product", "Staging Status", "Goods Issue Status",
			"Basic start date", "Basic finish date", "9191", "9192",
		}, rows[0])
		assert.Equal(t, "Completed", rows[1][0])
		assert.Equal(t, "01/02/2024", rows[1][5])

		assert.Equal(t, hex(ColorGreen), fillOf(t, f, SheetMaster, "A2"))
		assert.Equal(t, hex(ColorYellow), fillOf(t, f, SheetMaster, "A4"))
		assert.Equal(t, hex(ColorRed), fillOf(t, f, SheetMaster, "A5"))

		// 9191 = 10 on P1 rows, 9192 = 4 on the P3 row
		assert.Equal(t, hex(ColorGreen), fillOf(t, f, SheetMaster, "H2"))
		assert.Equal(t, "", fillOf(t, f, SheetMaster, "H3"))
		assert.Equal(t, "", fillOf(t, f, SheetMaster, "I2"))
		assert.Equal(t, hex(ColorGreen), fillOf(t, f, SheetMaster, "I5"))

		props, err := f.GetSheetProps(SheetMaster)
		require.NoError(t, err)
		require.NotNil(t, props.TabColorRGB)
		assert.Contains(t, strings.ToUpper(*props.TabColorRGB), "00B050")
	})

	t.Run("soh", func(t *testing.T) {
		raw, err := f.GetRows(SheetSOHRaw)
		require.NoError(t, err)
		assert.Len(t, raw, 4, "header plus rows passing the filters")

		pivot, err := f.GetRows(SheetSOHPivot)
		require.NoError(t, err)
		assert.Equal(t, []string{"Product", "MR9191", "MR9192"}, pivot[0])
		assert.Equal(t, []string{"P1", "10", "0"}, pivot[1])
	})

	t.Run("pivot summary side by side", func(t *testing.T) {
		title, err := f.GetCellValue(SheetPivotSummary, "A1")
		require.NoError(t, err)
		assert.Equal(t, "Staging Status", title)

		// staging block: key, 3 statuses, Grand Total; then a 3 column gap
		giTitle, err := f.GetCellValue(SheetPivotSummary, "I1")
		require.NoError(t, err)
		assert.Equal(t, "Goods Issue Status", giTitle)

		for _, cell := range []string{"F2", "G2", "H2"} {
			v, err := f.GetCellValue(SheetPivotSummary, cell)
			require.NoError(t, err)
			assert.Empty(t, v, cell)
		}

		rows, err := f.GetRows(SheetPivotSummary)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Manufacturing Order", "Completed", "Not Started", "Partially Completed", reconcile.GrandTotal,
			"", "", "",
			"Manufacturing Order", "Completed", "Not Started", reconcile.GrandTotal,
		}, rows[1])
		assert.Equal(t, "MO100", rows[2][0])
		assert.Equal(t, "2", rows[2][4])
	})

	t.Run("combined pivot", func(t *testing.T) {
		rows, err := f.GetRows(SheetCombinedPivot)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		header := rows[0]
		assert.Equal(t, "Hit", header[len(header)-1])
		assert.Contains(t, header, "Completed"+reconcile.SuffixStaging)
		assert.Contains(t, header, "Not Started"+reconcile.SuffixGI)
	})
}

func TestBuildReportRequiresFinishedRun(t *testing.T) {
	_, err := BuildReport(nil, ReportOptions{}, quiet)
	assert.True(t, apperrors.IsStateError(err))

	_, err = BuildReport(&reconcile.Result{}, ReportOptions{}, quiet)
	assert.True(t, apperrors.IsStateError(err))
}

func TestBuildFilteredZQM(t *testing.T) {
	res := finishedRun(t)

	data, err := BuildFilteredZQM(res.ZQMFiltered, quiet)
	require.NoError(t, err)
	f := testutil.OpenXLSX(t, data)

	assert.Equal(t, []string{SheetFiltered}, f.GetSheetList())
	rows, err := f.GetRows(SheetFiltered)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "MO100", rows[1][0])

	_, err = BuildFilteredZQM(nil, quiet)
	assert.True(t, apperrors.IsStateError(err))
}

func TestWorkbookBuilder(t *testing.T) {
	b, err := NewWorkbookBuilder(nil)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Bytes()
	assert.Error(t, err, "empty workbook")

	day := time.Date(2024, 4, 18, 0, 0, 0, 0, time.UTC)
	dated := table.New([]string{"Order", "Due"}, [][]table.Value{
		{table.NewString("MO1"), table.NewDate(day)},
		{table.NewString("MO2"), table.Null()},
	})
	require.NoError(t, b.AddTable("Dates", dated))
	require.NoError(t, b.AddTable("Empty", table.Empty()))
	assert.Error(t, b.AddTable("dates", dated), "duplicate names ignore case")
	assert.Error(t, b.AddTable("bad/name", dated))

	assert.Equal(t, []string{"Dates", "Empty"}, b.Sheets())

	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	f := testutil.OpenXLSX(t, buf.Bytes())
	id, err := f.GetCellStyle("Dates", "B2")
	require.NoError(t, err)
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	assert.Equal(t, dateNumFmt, style.NumFmt)

	v, err := f.GetCellValue("Dates", "B3")
	require.NoError(t, err)
	assert.Empty(t, v)
}
