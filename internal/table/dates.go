package table

import (
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// USDateLayout is the MM/DD/YYYY rendering used for enriched dates
const USDateLayout = "01/02/2006"

// maxExcelSerial is 9999-12-31
const maxExcelSerial = 2958465

var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/06",
	"01-02-06",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02.01.2006",
	"2.1.2006",
	"02-Jan-06",
	"2-Jan-06",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate parses common export date layouts. US month-first wins for
// slash dates.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToDate coerces a cell to a date: date cells as-is, numbers as Excel
// serials, text through ParseDate.
func ToDate(v Value) (time.Time, bool) {
	switch v.kind {
	case KindDate:
		return v.tm, true
	case KindNumber:
		if v.num < 1 || v.num > maxExcelSerial {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(v.num, false)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case KindString:
		return ParseDate(v.str)
	default:
		return time.Time{}, false
	}
}

// FormatUSDate renders a cell as MM/DD/YYYY text; unparseable cells become null.
func FormatUSDate(v Value) Value {
	t, ok := ToDate(v)
	if !ok {
		return Null()
	}
	return NewString(t.Format(USDateLayout))
}
