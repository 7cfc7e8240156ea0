package exporter

import (
	"unicode/utf8"

	"backfill/internal/table"
)

const (
	minColumnWidth = 10
	maxColumnWidth = 50
)

// cellValue converts a table cell to the value excelize stores
func cellValue(v table.Value) interface{} {
	switch v.Kind() {
	case table.KindNumber:
		n, _ := v.Float()
		return n
	case table.KindDate:
		t, _ := v.Time()
		return t
	case table.KindString:
		return v.String()
	default:
		return nil
	}
}

// columnWidth sizes a column to its widest cell, within bounds
func columnWidth(t *table.Table, j int) float64 {
	width := utf8.RuneCountInString(t.Columns()[j])
	for i := 0; i < t.NumRows(); i++ {
		if n := utf8.RuneCountInString(t.At(i, j).String()); n > width {
			width = n
		}
	}
	width += 2
	if width < minColumnWidth {
		return minColumnWidth
	}
	if width > maxColumnWidth {
		return maxColumnWidth
	}
	return float64(width)
}
