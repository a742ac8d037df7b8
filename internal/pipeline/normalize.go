package pipeline

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"estimatesync/internal"
	"estimatesync/internal/util"
)

var fieldAliases = map[string]string{
	"customer":         internal.FieldCustomerName,
	"client":           internal.FieldCustomerName,
	"bill_to":          internal.FieldCustomerName,
	"prepared_for":     internal.FieldCustomerName,
	"estimate_number":  internal.FieldReferenceNumber,
	"estimate":         internal.FieldReferenceNumber,
	"reference":        internal.FieldReferenceNumber,
	"estimate_date":    internal.FieldDate,
	"terms_conditions": internal.FieldTerms,
}

// Normalize coerces a strategy candidate into a fully populated record.
// Rates that do not parse become zero, quantities become one, unparsable
// dates and missing fields take the sentinel defaults, and an empty item list
// is replaced by the default five items.
func Normalize(c internal.RawCandidate) internal.EstimateRecord {
	fields := canonicalFields(c.Fields)

	rec := internal.EstimateRecord{
		CustomerName:    util.FirstNonEmpty(util.CollapseSpaces(fields[internal.FieldCustomerName]), DefaultCustomerName),
		ReferenceNumber: util.FirstNonEmpty(fields[internal.FieldReferenceNumber], DefaultReferenceNumber),
		Date:            DefaultDate,
		Terms:           util.FirstNonEmpty(fields[internal.FieldTerms], DefaultTerms),
	}
	if date, ok := NormalizeDate(fields[internal.FieldDate]); ok {
		rec.Date = date
	}
	rec.Notes = buildNotes(rec.CustomerName, fields)

	for _, raw := range c.LineItems {
		if item, ok := normalizeLineItem(raw); ok {
			rec.LineItems = append(rec.LineItems, item)
		}
	}
	if len(rec.LineItems) == 0 {
		rec.LineItems = DefaultLineItems()
	}
	return rec
}

func canonicalFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if alias, ok := fieldAliases[key]; ok {
			key = alias
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, exists := out[key]; !exists || key == k {
			out[key] = v
		}
	}
	return out
}

func buildNotes(customer string, fields map[string]string) string {
	if notes := fields[internal.FieldNotes]; notes != "" {
		return notes
	}
	if IsDefaultCustomer(customer) {
		return DefaultNotes
	}

	notes := fmt.Sprintf("Estimate for %s. Automatically created from PDF.", customer)
	var contact []string
	if phone := fields[internal.FieldPhone]; phone != "" {
		contact = append(contact, "Phone: "+phone)
	}
	if email := fields[internal.FieldEmail]; email != "" {
		contact = append(contact, "Email: "+email)
	}
	if len(contact) > 0 {
		notes += " " + strings.Join(contact, ", ")
	}
	return notes
}

func normalizeLineItem(raw internal.RawLineItem) (internal.LineItem, bool) {
	name := util.CollapseSpaces(raw.Name)
	if name == "" {
		return internal.LineItem{}, false
	}

	rate, ok := util.ParseAmount(raw.Rate)
	if !ok || rate.IsNegative() {
		rate = decimal.Zero
	}
	qty, ok := util.ParseQuantity(raw.Quantity)
	if !ok {
		qty = 1
	}

	return internal.LineItem{
		Name:        name,
		Description: util.FirstNonEmpty(util.CollapseSpaces(raw.Description), "Item from PDF: "+name),
		Rate:        rate.Round(2),
		Quantity:    qty,
	}, true
}
