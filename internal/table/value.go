package table

import (
	"strconv"
	"strings"
	"time"
)

// Kind is the type of a cell
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// Value is a single cell. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	tm   time.Time
}

// Null returns the null cell
func Null() Value { return Value{} }

// NewString returns a text cell
func NewString(s string) Value { return Value{kind: KindString, str: s} }

// NewNumber returns a numeric cell
func NewNumber(n float64) Value { return Value{kind: KindNumber, num: n} }

// NewDate returns a date cell
func NewDate(t time.Time) Value { return Value{kind: KindDate, tm: t} }

// Kind returns the cell type
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is empty
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value of a number cell
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Time returns the value of a date cell
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.tm, true
}

// String renders the cell as display text. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindDate:
		if v.tm.Hour() == 0 && v.tm.Minute() == 0 && v.tm.Second() == 0 {
			return v.tm.Format("2006-01-02")
		}
		return v.tm.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Key is the canonical join text: trimmed, and numbers without a trailing .0,
// so an order stored as 1000123 in one file matches "1000123" in another.
func (v Value) Key() string {
	return strings.TrimSpace(v.String())
}

// Equal compares cells by kind and value
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindDate:
		return v.tm.Equal(o.tm)
	default:
		return true
	}
}

// Infer types a text cell: blank is null, plain numerals are numbers and
// everything else, including numerals with a leading zero, stays text.
func Infer(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Null()
	}
	if isNumericText(trimmed) && !hasLeadingZero(trimmed) {
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return NewNumber(n)
		}
	}
	return NewString(s)
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// isNumericText accepts decimal numerals with an optional sign and exponent
func isNumericText(s string) bool {
	if s == "" {
		return false
	}
	digits := 0
	seenDot, seenExp := false, false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-':
			if i != 0 && s[i-1] != 'e' && s[i-1] != 'E' {
				return false
			}
		case r == '.':
			if seenDot || seenExp {
				return false
			}
			seenDot = true
		case r == 'e' || r == 'E':
			if seenExp || digits == 0 {
				return false
			}
			seenExp = true
		default:
			return false
		}
	}
	return digits > 0
}

// hasLeadingZero reports codes like "0010" that must keep their text form
func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}
