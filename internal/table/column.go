package table

import (
	"fmt"
	"strings"

	"github.com/schollz/closestmatch"
	"golang.org/x/text/unicode/norm"
)

// NormalizeHeader folds a header for matching: NFKC, trimmed, lower-case,
// inner whitespace collapsed.
func NormalizeHeader(s string) string {
	s = norm.NFKC.String(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// FindColumn returns the first column whose normalized name contains the
// normalized substring. A miss is not an error; callers decide.
func FindColumn(t *Table, substring string) (string, bool) {
	needle := NormalizeHeader(substring)
	if needle == "" {
		return "", false
	}
	for _, c := range t.columns {
		if strings.Contains(NormalizeHeader(c), needle) {
			return c, true
		}
	}
	return "", false
}

// ColumnNamed returns the column equal to name, first exactly and then
// after normalization ("gr qty " matches "GR Qty").
func ColumnNamed(t *Table, name string) (string, bool) {
	if t.HasColumn(name) {
		return name, true
	}
	want := NormalizeHeader(name)
	for _, c := range t.columns {
		if NormalizeHeader(c) == want {
			return c, true
		}
	}
	return "", false
}

// Suggest returns up to three existing headers that look like name.
// Both sides are normalized first; closestmatch only lower-cases the index.
func Suggest(t *Table, name string) []string {
	if len(t.columns) == 0 {
		return nil
	}
	folded := make([]string, 0, len(t.columns))
	original := make(map[string]string, len(t.columns))
	for _, c := range t.columns {
		n := NormalizeHeader(c)
		if _, seen := original[n]; seen || n == "" {
			continue
		}
		original[n] = c
		folded = append(folded, n)
	}
	cm := closestmatch.New(folded, []int{2, 3})
	var out []string
	for _, s := range cm.ClosestN(NormalizeHeader(name), 3) {
		if c, ok := original[s]; ok {
			out = append(out, c)
		}
	}
	return out
}

// UniqueHeaders trims headers, names blanks "Unnamed: N" and suffixes
// repeats with ".1", ".2", ...
func UniqueHeaders(headers []string) []string {
	out := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	counts := make(map[string]int)
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for used[name] {
			counts[h]++
			name = fmt.Sprintf("%s.%d", h, counts[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// Field is a logical column resolved against a concrete table
type Field string

// FieldSpec identifies a field by its canonical Name, matched exactly, and
// then by Synonyms, substrings tried in order of preference.
type FieldSpec struct {
	Field    Field
	Name     string
	Synonyms []string
}

func (fs FieldSpec) resolve(t *Table) (string, bool) {
	if fs.Name != "" {
		if col, ok := ColumnNamed(t, fs.Name); ok {
			return col, true
		}
	}
	for _, syn := range fs.Synonyms {
		if col, ok := FindColumn(t, syn); ok {
			return col, true
		}
	}
	return "", false
}

// Schema is the set of logical fields resolved once for a table
type Schema struct {
	columns map[Field]string
	missing []Field
}

// ResolveSchema resolves each FieldSpec: an exact Name match wins over any
// synonym, so "Product Description" never shadows "Product".
func ResolveSchema(t *Table, specs ...FieldSpec) Schema {
	s := Schema{columns: make(map[Field]string, len(specs))}
	for _, spec := range specs {
		if col, ok := spec.resolve(t); ok {
			s.columns[spec.Field] = col
		} else {
			s.missing = append(s.missing, spec.Field)
		}
	}
	return s
}

// Column returns the concrete column for f
func (s Schema) Column(f Field) (string, bool) {
	c, ok := s.columns[f]
	return c, ok
}

// Has reports whether f resolved
func (s Schema) Has(f Field) bool {
	_, ok := s.columns[f]
	return ok
}

// Missing lists the fields that did not resolve, in the order they were declared
func (s Schema) Missing() []Field {
	return append([]Field(nil), s.missing...)
}
