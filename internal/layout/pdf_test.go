package layout

import (
	"testing"

	pdf "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimatesync/internal"
)

// glyphs lays out s as individual characters starting at x on baseline y.
func glyphs(s string, x, y float64) []pdf.Text {
	const size, advance = 10.0, 5.0
	out := make([]pdf.Text, 0, len(s))
	for i, r := range s {
		out = append(out, pdf.Text{FontSize: size, X: x + float64(i)*advance, Y: y, W: advance, S: string(r)})
	}
	return out
}

func page(parts ...[]pdf.Text) []pdf.Text {
	var out []pdf.Text
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestBuildRowsMergesGlyphsIntoCells(t *testing.T) {
	rows := buildRows(page(
		glyphs("Kitchen Demo", 40, 500),
		glyphs("2,574.00", 400, 501),
		glyphs("Bill To", 40, 700),
	))

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Bill To"}, rows[0].texts())
	assert.Equal(t, []string{"Kitchen Demo", "2,574.00"}, rows[1].texts())
}

func TestCandidateFromPDFRows(t *testing.T) {
	rows := buildRows(page(
		glyphs("Estimate # ES-10777", 40, 760),
		glyphs("Bill To", 40, 740),
		glyphs("Sam Ortiz", 40, 728),
		glyphs("Date: May 20, 2025", 300, 740),
		glyphs("Item", 40, 680),
		glyphs("Qty", 260, 680),
		glyphs("Price", 360, 680),
		glyphs("Kitchen Demo", 40, 660),
		glyphs("1", 265, 660),
		glyphs("2,574.00", 350, 660),
		glyphs("Kitchen Tile", 40, 640),
		glyphs("2", 265, 640),
		glyphs("994.70", 355, 640),
		glyphs("Total", 40, 600),
		glyphs("4,563.40", 350, 600),
	))

	c, err := candidateFromPDFRows(rows)
	require.NoError(t, err)

	assert.Equal(t, "ES-10777", c.Field(internal.FieldReferenceNumber))
	assert.Equal(t, "Sam Ortiz", c.Field(internal.FieldCustomerName))
	assert.Equal(t, "May 20, 2025", c.Field(internal.FieldDate))
	assert.Equal(t, "4,563.40", c.Field(internal.FieldTotal))

	require.Len(t, c.LineItems, 2)
	assert.Equal(t, internal.RawLineItem{Name: "Kitchen Demo", Rate: "2,574.00", Quantity: "1"}, c.LineItems[0])
	assert.Equal(t, internal.RawLineItem{Name: "Kitchen Tile", Rate: "994.70", Quantity: "2"}, c.LineItems[1])
}

func TestCandidateFromPDFRowsWithoutHeader(t *testing.T) {
	rows := buildRows(page(glyphs("Thank you for your business", 40, 700)))
	_, err := candidateFromPDFRows(rows)
	require.ErrorIs(t, err, errNoTable)
}
