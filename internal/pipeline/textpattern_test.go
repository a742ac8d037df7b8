package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimatesync/internal"
)

const houzzEstimate = `Acme Remodeling LLC
Estimate ES-10422
Date: March 5, 2024
Bill To
Jane Q Customer
12 Elm Street

Phone: (555) 123-4567
jane@example.com

1 Kitchen-Demo 2,574.00
Remove cabinets and flooring
2 Kitchen-Cabinetry 9,931.60
3 Bath-Tile 1,200.00
Subtotal $13,705.60
Total $13,705.60
`

func TestExtractFromTextFields(t *testing.T) {
	c, err := ExtractFromText(houzzEstimate)
	require.NoError(t, err)

	assert.Equal(t, "Jane Q Customer", c.Field(internal.FieldCustomerName))
	assert.Equal(t, "ES-10422", c.Field(internal.FieldReferenceNumber))
	assert.Equal(t, "2024-03-05", c.Field(internal.FieldDate))
	assert.Equal(t, "(555) 123-4567", c.Field(internal.FieldPhone))
	assert.Equal(t, "jane@example.com", c.Field(internal.FieldEmail))
	assert.Equal(t, "13,705.60", c.Field(internal.FieldTotal))
}

func TestExtractFromTextBillToStopsAtLineEnd(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"same line", "Bill To: Jane Q Customer\n12 Elm Street\nSpringfield, IL 62701\n"},
		{"next line", "Bill To\nJane Q Customer\n12 Elm Street\nspringfield, il 62701\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ExtractFromText(tt.text + "Thank you for the opportunity to quote this work.\n")
			require.NoError(t, err)
			assert.Equal(t, "Jane Q Customer", c.Field(internal.FieldCustomerName))
		})
	}
}

func TestExtractFromTextDateOnNextLine(t *testing.T) {
	text := "Estimate prepared for the kitchen renovation project\nDate:\n06/01/2025\n"
	c, err := ExtractFromText(text)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", c.Field(internal.FieldDate))
}

func TestExtractFromTextNumberedSections(t *testing.T) {
	c, err := ExtractFromText(houzzEstimate)
	require.NoError(t, err)

	matching := 0
	for _, line := range strings.Split(houzzEstimate, "\n") {
		if reNumberedLine.MatchString(line) {
			matching++
		}
	}
	require.Len(t, c.LineItems, matching)
	require.Len(t, c.LineItems, 3)

	assert.Equal(t, internal.RawLineItem{
		Name:        "1. Kitchen Demo",
		Description: "Remove cabinets and flooring",
		Rate:        "2,574.00",
		Quantity:    "1",
	}, c.LineItems[0])
	assert.Equal(t, "Main category: Kitchen Cabinetry", c.LineItems[1].Description)
	assert.Equal(t, "3. Bath Tile", c.LineItems[2].Name)
	assert.Equal(t, "Subtotal $13,705.60", c.LineItems[2].Description)
}

func TestExtractFromTextSingleNumberedLine(t *testing.T) {
	text := "Estimate for the kitchen renovation project\n1 Kitchen-Demo 2,574.00\n"
	c, err := ExtractFromText(text)
	require.NoError(t, err)

	rec := Normalize(c)
	require.Len(t, rec.LineItems, 1)
	assert.Equal(t, "1. Kitchen Demo", rec.LineItems[0].Name)
	assert.True(t, rec.LineItems[0].Rate.Equal(mustDecimal(t, "2574.00")))
	assert.Equal(t, 1, rec.LineItems[0].Quantity)
	assert.Equal(t, "Main category: Kitchen Demo", rec.LineItems[0].Description)
}

func TestExtractFromTextCurrencyLines(t *testing.T) {
	text := `Project summary for the remodel
Countertops: $4,250.00
Permit fee - $85.00
Haul away $150.00
`
	c, err := ExtractFromText(text)
	require.NoError(t, err)

	require.Len(t, c.LineItems, 2)
	assert.Equal(t, "Countertops", c.LineItems[0].Name)
	assert.Equal(t, "Item from PDF: Countertops", c.LineItems[0].Description)
	assert.Equal(t, "4,250.00", c.LineItems[0].Rate)
	assert.Equal(t, "Haul away", c.LineItems[1].Name)
}

func TestExtractFromTextCurrencyLinesSkipSummaries(t *testing.T) {
	text := `Project summary for the remodel
Countertops: $4,250.00
Subtotal $4,250.00
Tax: $340.00
Total: $4,590.00
`
	c, err := ExtractFromText(text)
	require.NoError(t, err)

	require.Len(t, c.LineItems, 1)
	assert.Equal(t, "Countertops", c.LineItems[0].Name)
}

func TestExtractFromTextOnlySummaryLinesUsesSubtotal(t *testing.T) {
	text := "Thank you for choosing us for your project.\nSubtotal $8,400.00\nTotal $8,904.00\n"
	c, err := ExtractFromText(text)
	require.NoError(t, err)

	require.Len(t, c.LineItems, 1)
	assert.Equal(t, "1. Complete Project", c.LineItems[0].Name)
	assert.Equal(t, "8,400.00", c.LineItems[0].Rate)
}

func TestExtractFromTextSingleTotal(t *testing.T) {
	text := "Thank you for choosing us for your project.\nAll work guaranteed.\nTotal 8,400.00\n"
	c, err := ExtractFromText(text)
	require.NoError(t, err)

	require.Len(t, c.LineItems, 1)
	assert.Equal(t, "1. Complete Project", c.LineItems[0].Name)
	assert.Equal(t, "Full project as described in PDF", c.LineItems[0].Description)
	assert.Equal(t, "8,400.00", c.LineItems[0].Rate)
}

func TestExtractFromTextFallsBackToDefaults(t *testing.T) {
	text := "This document has plenty of words but nothing that looks like an estimate."
	c, err := ExtractFromText(text)
	require.NoError(t, err)

	assert.Equal(t, DefaultCustomerName, c.Field(internal.FieldCustomerName))
	assert.Equal(t, DefaultReferenceNumber, c.Field(internal.FieldReferenceNumber))
	assert.Equal(t, DefaultDate, c.Field(internal.FieldDate))
	require.Len(t, c.LineItems, 5)
	assert.Equal(t, "1. Kitchen Demo", c.LineItems[0].Name)
}

func TestExtractFromTextBareESNumberAndBadDate(t *testing.T) {
	text := "Reference ES-20001 issued for the customer.\nDate: 13/45/2024\nMore filler text here."
	c, err := ExtractFromText(text)
	require.NoError(t, err)

	assert.Equal(t, "ES-20001", c.Field(internal.FieldReferenceNumber))
	assert.Equal(t, DefaultDate, c.Field(internal.FieldDate))
}

func TestExtractFromTextRejectsShortText(t *testing.T) {
	_, err := ExtractFromText("  Bill To: Jane  ")
	require.ErrorIs(t, err, internal.ErrLowConfidenceText)
}
