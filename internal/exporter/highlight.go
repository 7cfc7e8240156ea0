package exporter

import (
	"backfill/internal/table"
	"backfill/pkg/contracts/domain"
)

// Fill colors of highlighted cells
const (
	ColorGreen  = "#C6EFCE"
	ColorRed    = "#FFC7CE"
	ColorYellow = "#FFEB9C"
)

// HitColors maps each status to its fill
var HitColors = map[domain.HitStatus]string{
	domain.HitCompleted: ColorGreen,
	domain.HitPulled:    ColorRed,
	domain.HitNotPulled: ColorYellow,
}

// HitHighlight colors the cells of column by their Hit status. Null and
// unknown values stay uncolored.
func HitHighlight(column string) HighlightRule {
	return func(col string, v table.Value) string {
		if col != column || v.IsNull() {
			return ""
		}
		return HitColors[domain.HitStatus(v.String())]
	}
}

// PositiveHighlight colors numeric cells above zero in the given columns
func PositiveHighlight(color string, columns ...string) HighlightRule {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	return func(col string, v table.Value) string {
		if !set[col] {
			return ""
		}
		if n, ok := v.Float(); ok && n > 0 {
			return color
		}
		return ""
	}
}
