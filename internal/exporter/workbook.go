package exporter

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"backfill/internal/table"
)

const (
	headerFill = "#D9E1F2"
	// dateNumFmt is the built-in m/d/yyyy format
	dateNumFmt = 14
)

// HighlightRule returns the fill color of a data cell, or "" for none
type HighlightRule func(column string, v table.Value) string

// Block is a table placed on a sheet. Blocks of a sheet sit side by side.
type Block struct {
	// Title, when set, is written in bold above the header row
	Title string
	Table *table.Table
}

// Sheet describes one worksheet
type Sheet struct {
	Name   string
	Blocks []Block
	// Gap is the number of empty columns between blocks
	Gap        int
	Highlights []HighlightRule
	TabColor   string
}

// WorkbookBuilder accumulates sheets into one xlsx workbook
type WorkbookBuilder struct {
	file      *excelize.File
	logger    *slog.Logger
	fills     map[string]int
	header    int
	title     int
	date      int
	sheets    []string
	hasSheets bool
}

// NewWorkbookBuilder creates an empty workbook
func NewWorkbookBuilder(logger *slog.Logger) (*WorkbookBuilder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := excelize.NewFile()
	b := &WorkbookBuilder{
		file:   f,
		logger: logger,
		fills:  make(map[string]int),
	}

	var err error
	if b.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if b.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create title style: %w", err)
	}
	if b.date, err = f.NewStyle(&excelize.Style{NumFmt: dateNumFmt}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create date style: %w", err)
	}
	return b, nil
}

// AddTable adds a sheet holding a single table
func (b *WorkbookBuilder) AddTable(name string, t *table.Table, highlights ...HighlightRule) error {
	return b.AddSheet(Sheet{Name: name, Blocks: []Block{{Table: t}}, Highlights: highlights})
}

// AddSheet writes a sheet after the ones already added
func (b *WorkbookBuilder) AddSheet(s Sheet) error {
	for _, existing := range b.sheets {
		if strings.EqualFold(existing, s.Name) {
			return fmt.Errorf("sheet %q already added", s.Name)
		}
	}

	if !b.hasSheets {
		if err := b.file.SetSheetName("Sheet1", s.Name); err != nil {
			return fmt.Errorf("failed to name sheet %q: %w", s.Name, err)
		}
	} else if _, err := b.file.NewSheet(s.Name); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", s.Name, err)
	}
	b.hasSheets = true
	b.sheets = append(b.sheets, s.Name)

	headerRow := 1
	for _, blk := range s.Blocks {
		if blk.Title != "" {
			headerRow = 2
			break
		}
	}

	col := 1
	rows := 0
	for _, blk := range s.Blocks {
		if blk.Table == nil {
			continue
		}
		if err := b.writeBlock(s, blk, col, headerRow); err != nil {
			return err
		}
		col += blk.Table.NumCols() + s.Gap
		rows += blk.Table.NumRows()
	}

	if len(s.Blocks) == 1 && s.Blocks[0].Table != nil && s.Blocks[0].Table.NumCols() > 0 {
		if err := b.freezeHeader(s.Name, s.Blocks[0].Table, headerRow); err != nil {
			return err
		}
	}

	if s.TabColor != "" {
		color := strings.ToUpper(strings.TrimPrefix(s.TabColor, "#"))
		if err := b.file.SetSheetProps(s.Name, &excelize.SheetPropsOptions{TabColorRGB: &color}); err != nil {
			return fmt.Errorf("failed to set tab color on %q: %w", s.Name, err)
		}
	}

	b.logger.Debug("Sheet written",
		slog.String("sheet", s.Name),
		slog.Int("blocks", len(s.Blocks)),
		slog.Int("rows", rows))
	return nil
}

func (b *WorkbookBuilder) writeBlock(s Sheet, blk Block, col, headerRow int) error {
	t := blk.Table
	if t.NumCols() == 0 {
		return nil
	}

	if blk.Title != "" {
		cell, err := excelize.CoordinatesToCellName(col, 1)
		if err != nil {
			return err
		}
		if err := b.file.SetCellValue(s.Name, cell, blk.Title); err != nil {
			return fmt.Errorf("failed to write title on %q: %w", s.Name, err)
		}
		if err := b.file.SetCellStyle(s.Name, cell, cell, b.title); err != nil {
			return err
		}
	}

	header := make([]interface{}, t.NumCols())
	for j, name := range t.Columns() {
		header[j] = name
	}
	first, err := excelize.CoordinatesToCellName(col, headerRow)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(col+t.NumCols()-1, headerRow)
	if err != nil {
		return err
	}
	if err := b.file.SetSheetRow(s.Name, first, &header); err != nil {
		return fmt.Errorf("failed to write header on %q: %w", s.Name, err)
	}
	if err := b.file.SetCellStyle(s.Name, first, last, b.header); err != nil {
		return err
	}

	for i := 0; i < t.NumRows(); i++ {
		row := make([]interface{}, t.NumCols())
		for j := range row {
			row[j] = cellValue(t.At(i, j))
		}
		cell, err := excelize.CoordinatesToCellName(col, headerRow+1+i)
		if err != nil {
			return err
		}
		if err := b.file.SetSheetRow(s.Name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d on %q: %w", i+1, s.Name, err)
		}
		if err := b.styleRow(s, t, i, col, headerRow+1+i); err != nil {
			return err
		}
	}

	for j := 0; j < t.NumCols(); j++ {
		name, err := excelize.ColumnNumberToName(col + j)
		if err != nil {
			return err
		}
		if err := b.file.SetColWidth(s.Name, name, name, columnWidth(t, j)); err != nil {
			return err
		}
	}
	return nil
}

// styleRow applies date formats and highlight fills to one data row
func (b *WorkbookBuilder) styleRow(s Sheet, t *table.Table, i, col, row int) error {
	for j, name := range t.Columns() {
		v := t.At(i, j)
		style := 0
		if v.Kind() == table.KindDate {
			style = b.date
		}
		for _, rule := range s.Highlights {
			if color := rule(name, v); color != "" {
				fill, err := b.fill(color)
				if err != nil {
					return err
				}
				style = fill
				break
			}
		}
		if style == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+j, row)
		if err != nil {
			return err
		}
		if err := b.file.SetCellStyle(s.Name, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// fill returns the cached solid fill style for color
func (b *WorkbookBuilder) fill(color string) (int, error) {
	if id, ok := b.fills[color]; ok {
		return id, nil
	}
	id, err := b.file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create fill %s: %w", color, err)
	}
	b.fills[color] = id
	return id, nil
}

func (b *WorkbookBuilder) freezeHeader(sheet string, t *table.Table, headerRow int) error {
	topLeft, err := excelize.CoordinatesToCellName(1, headerRow+1)
	if err != nil {
		return err
	}
	if err := b.file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: topLeft,
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header on %q: %w", sheet, err)
	}

	if t.NumRows() == 0 {
		return nil
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, err := excelize.CoordinatesToCellName(t.NumCols(), headerRow+t.NumRows())
	if err != nil {
		return err
	}
	if err := b.file.AutoFilter(sheet, first+":"+last, nil); err != nil {
		return fmt.Errorf("failed to add filter on %q: %w", sheet, err)
	}
	return nil
}

// Sheets returns the sheet names in workbook order
func (b *WorkbookBuilder) Sheets() []string {
	return append([]string(nil), b.sheets...)
}

// WriteTo writes the workbook as xlsx
func (b *WorkbookBuilder) WriteTo(w io.Writer) (int64, error) {
	if !b.hasSheets {
		return 0, fmt.Errorf("workbook has no sheets")
	}
	b.file.SetActiveSheet(0)
	return b.file.WriteTo(w)
}

// Bytes renders the workbook
func (b *WorkbookBuilder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close releases the workbook's temporary resources
func (b *WorkbookBuilder) Close() error {
	return b.file.Close()
}
