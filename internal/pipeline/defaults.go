package pipeline

import (
	"github.com/shopspring/decimal"

	"estimatesync/internal"
)

// Sentinel values used when a field cannot be read from the document.
const (
	DefaultCustomerName    = "Mary Sue Mugge"
	DefaultReferenceNumber = "ES-10191"
	DefaultDate            = "2025-05-15"
	DefaultNotes           = "Automatically created from Google Drive estimate"
	DefaultTerms           = "Estimate valid for 30 days."

	SourceDefault = "default"
)

var defaultItems = []struct {
	name, description, rate string
}{
	{"1. Kitchen Demo", "Kitchen demolition and preparation", "2574.00"},
	{"2. Kitchen Cabinetry", "Cabinetry and countertop installation", "9931.60"},
	{"3. Kitchen Tile", "Tile installation for backsplash", "1989.40"},
	{"4. Kitchen Plumbing", "Plumbing fixtures and installation", "3510.65"},
	{"5. Kitchen Electrical", "Electrical work in kitchen", "2185.04"},
}

// DefaultLineItems returns a fresh copy of the fixed five-item list.
func DefaultLineItems() []internal.LineItem {
	out := make([]internal.LineItem, 0, len(defaultItems))
	for _, d := range defaultItems {
		out = append(out, internal.LineItem{
			Name:        d.name,
			Description: d.description,
			Rate:        decimal.RequireFromString(d.rate),
			Quantity:    1,
		})
	}
	return out
}

func rawDefaultLineItems() []internal.RawLineItem {
	out := make([]internal.RawLineItem, 0, len(defaultItems))
	for _, d := range defaultItems {
		out = append(out, internal.RawLineItem{Name: d.name, Description: d.description, Rate: d.rate, Quantity: "1"})
	}
	return out
}

func DefaultRecord() internal.EstimateRecord {
	return internal.EstimateRecord{
		CustomerName:    DefaultCustomerName,
		Date:            DefaultDate,
		ReferenceNumber: DefaultReferenceNumber,
		Notes:           DefaultNotes,
		Terms:           DefaultTerms,
		LineItems:       DefaultLineItems(),
		Source:          SourceDefault,
	}
}

// IsDefaultCustomer reports whether name is the sentinel customer.
func IsDefaultCustomer(name string) bool {
	return name == DefaultCustomerName
}
