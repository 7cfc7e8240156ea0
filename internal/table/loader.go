package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	apperrors "backfill/internal/errors"
)

// Format is a supported spreadsheet encoding
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
)

// DetectFormat picks a reader from the file extension, falling back to the
// leading bytes when the extension is missing or unknown.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		// some systems export xlsx with an .xls name
		if bytes.HasPrefix(data, zipMagic) {
			return FormatXLSX
		}
		return FormatXLS
	case ".csv", ".txt":
		return FormatCSV
	}

	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, ole2Magic):
		return FormatXLS
	default:
		return FormatCSV
	}
}

// Loader parses uploaded spreadsheets into tables
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With(slog.String("component", "table_loader"))}
}

// LoadFile reads and parses a spreadsheet from disk
func (l *Loader) LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	return l.Load(filepath.Base(path), data)
}

// Load parses the first sheet of a spreadsheet. The first non-empty row is the
// header; fully empty data rows are dropped. Failures are ParseErrors.
func (l *Loader) Load(filename string, data []byte) (*Table, error) {
	if len(data) == 0 {
		return nil, apperrors.NewParseError(fmt.Sprintf("%s is empty", filename), nil)
	}

	format := DetectFormat(filename, data)

	var (
		t   *Table
		err error
	)
	switch format {
	case FormatXLSX:
		t, err = readXLSX(data)
	case FormatXLS:
		t, err = readXLS(data)
	default:
		t, err = readCSV(data)
	}
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr.WithContext("file", filename)
		}
		return nil, apperrors.NewParseError(fmt.Sprintf("failed to read %s as %s", filename, format), err).
			WithContext("file", filename)
	}

	l.logger.Info("spreadsheet loaded",
		slog.String("file", filename),
		slog.String("format", string(format)),
		slog.Int("rows", t.NumRows()),
		slog.Int("columns", t.NumCols()),
	)
	return t, nil
}

// readXLSX reads raw and formatted values so numbers keep full precision and
// date-formatted numbers become dates.
func readXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apperrors.NewParseError("workbook has no worksheet", nil)
	}

	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	return build(formatted, func(i, j int) Value {
		shown := cellAt(formatted, i, j)
		return typeXLSXCell(cellAt(raw, i, j), shown)
	})
}

func typeXLSXCell(raw, shown string) Value {
	if strings.TrimSpace(raw) == "" {
		return Null()
	}
	if isNumericText(strings.TrimSpace(raw)) && !hasLeadingZero(strings.TrimSpace(raw)) {
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err == nil {
			if n >= 1 && shown != raw && looksLikeDate(shown) {
				if tm, err := excelize.ExcelDateToTime(n, false); err == nil {
					return NewDate(tm)
				}
			}
			return NewNumber(n)
		}
	}
	if shown == "" {
		shown = raw
	}
	return NewString(shown)
}

// looksLikeDate reports formatted text such as 01/15/2024, 2024-01-15 or 15-Jan-24.
// A leading minus is a negative number, not a date.
func looksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || s[0] == '-' || s[0] == '(' {
		return false
	}
	if _, ok := ParseDate(s); ok {
		return true
	}
	return strings.ContainsAny(s, "/:") || strings.Count(s, "-") == 2
}

func readXLS(data []byte) (t *Table, err error) {
	// the BIFF reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("malformed xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, apperrors.NewParseError("workbook has no worksheet", nil)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, apperrors.NewParseError("workbook has no worksheet", nil)
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol()+1)
		for j := 0; j <= row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, trimTrailingEmpty(cells))
	}

	return build(rows, func(i, j int) Value { return Infer(cellAt(rows, i, j)) })
}

// readCSV decodes UTF-8 (with or without BOM) and falls back to Windows-1252.
// The delimiter is ';' when the header has more semicolons than commas.
func readCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder())
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = sniffDelimiter(data)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return build(rows, func(i, j int) Value { return Infer(cellAt(rows, i, j)) })
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// build finds the header row and types every data cell with cell(i, j)
func build(rows [][]string, cell func(i, j int) Value) (*Table, error) {
	header := -1
	for i, row := range rows {
		if !isBlank(row) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, apperrors.NewParseError("no header row found", nil)
	}

	columns := UniqueHeaders(rows[header])
	data := make([][]Value, 0, len(rows)-header-1)
	for i := header + 1; i < len(rows); i++ {
		if isBlank(rows[i]) {
			continue
		}
		r := make([]Value, len(columns))
		for j := range columns {
			r[j] = cell(i, j)
		}
		data = append(data, r)
	}
	return &Table{columns: columns, rows: data}, nil
}

func cellAt(rows [][]string, i, j int) string {
	if i >= len(rows) || j >= len(rows[i]) {
		return ""
	}
	return rows[i][j]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailingEmpty(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}
