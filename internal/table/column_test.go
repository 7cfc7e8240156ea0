package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindColumn(t *testing.T) {
	tb := Empty("Plant", "  Manufacturing Order ", "Basic Start Date", "Basic finish date", "Serial No.")

	tests := []struct {
		substr string
		want   string
		found  bool
	}{
		{"order", "  Manufacturing Order ", true},
		{"START", "Basic Start Date", true},
		{"finish", "Basic finish date", true},
		{" serial ", "Serial No.", true},
		{"status", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.substr, func(t *testing.T) {
			got, ok := FindColumn(tb, tt.substr)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindColumnReturnsFirstMatch(t *testing.T) {
	tb := Empty("Order Type", "Manufacturing Order")
	got, ok := FindColumn(tb, "order")
	assert.True(t, ok)
	assert.Equal(t, "Order Type", got)
}

func TestColumnNamed(t *testing.T) {
	tb := Empty("GR  Qty", "Status")

	got, ok := ColumnNamed(tb, "GR Qty")
	assert.True(t, ok)
	assert.Equal(t, "GR  Qty", got)

	got, ok = ColumnNamed(tb, "status")
	assert.True(t, ok)
	assert.Equal(t, "Status", got)

	_, ok = ColumnNamed(tb, "Stat")
	assert.False(t, ok, "no substring matching")
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "gr qty", NormalizeHeader("  GR \t Qty "))
	// full-width letters fold under NFKC
	assert.Equal(t, "order", NormalizeHeader("ＯＲＤＥＲ"))
}

func TestUniqueHeaders(t *testing.T) {
	got := UniqueHeaders([]string{" Status ", "Status", "", "Status", "Status.1"})
	assert.Equal(t, []string{"Status", "Status.1", "Unnamed: 2", "Status.2", "Status.1.1"}, got)
}

func TestResolveSchema(t *testing.T) {
	tb := Empty("Order Type", "Manufacturing Order", "Staging Status")

	const (
		order  Field = "order"
		stage  Field = "staging"
		issued Field = "goods_issue"
	)

	schema := ResolveSchema(tb,
		FieldSpec{Field: order, Synonyms: []string{"manufacturing order", "order"}},
		FieldSpec{Field: stage, Synonyms: []string{"staging status"}},
		FieldSpec{Field: issued, Synonyms: []string{"goods issue status", "gi status"}},
	)

	col, ok := schema.Column(order)
	assert.True(t, ok)
	assert.Equal(t, "Manufacturing Order", col, "earlier synonym wins over column order")
	assert.True(t, schema.Has(stage))
	assert.False(t, schema.Has(issued))
	assert.Equal(t, []Field{issued}, schema.Missing())
}

func TestSuggest(t *testing.T) {
	tb := Empty("GR Quantity", "Status", "Material")

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"abbreviation", "GR Qty", "GR Quantity"},
		{"lower case", "status", "Status"},
		{"upper case", "MATERIAL", "Material"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Suggest(tb, tt.query)
			require.NotEmpty(t, got)
			assert.Equal(t, tt.want, got[0])
			assert.LessOrEqual(t, len(got), 3)
		})
	}

	assert.Empty(t, Suggest(tb, "zz"))
	assert.Nil(t, Suggest(Empty(), "x"))
}

func TestResolveSchemaExactNameFirst(t *testing.T) {
	tb := Empty("Product Description", "Available Quantity", "Product", "Quantity")

	const (
		product  Field = "product"
		quantity Field = "quantity"
		owner    Field = "owner"
	)
	schema := ResolveSchema(tb,
		FieldSpec{Field: product, Name: "Product", Synonyms: []string{"product"}},
		FieldSpec{Field: quantity, Name: "quantity", Synonyms: []string{"quantity"}},
		FieldSpec{Field: owner, Name: "Owner", Synonyms: []string{"owner"}},
	)

	col, _ := schema.Column(product)
	assert.Equal(t, "Product", col)
	col, _ = schema.Column(quantity)
	assert.Equal(t, "Quantity", col, "normalized exact match")
	assert.Equal(t, []Field{owner}, schema.Missing())

	fallback := ResolveSchema(Empty("Product Description"),
		FieldSpec{Field: product, Name: "Product", Synonyms: []string{"product"}})
	col, _ = fallback.Column(product)
	assert.Equal(t, "Product Description", col)
}
