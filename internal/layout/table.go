package layout

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"estimatesync/internal"
	"estimatesync/internal/util"
)

var (
	reHasDigit   = regexp.MustCompile(`\d`)
	reTableStop  = regexp.MustCompile(`(?i)^(sub\s*total|total|grand total|tax|sales tax|balance|deposit)\b`)
	reRefHasCode = regexp.MustCompile(`[A-Za-z]*-?\d`)
)

type columns struct {
	item        int
	description int
	quantity    int
	rate        int
	amount      int
}

// inferColumns maps a header row onto line-item columns. A row qualifies as
// a header when it names an item (or description) column and a money column.
func inferColumns(headers []string) (columns, bool) {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, strings.ToLower(util.CollapseSpaces(h)))
	}

	cols := columns{
		item:        findHeaderIndex(norm, []string{"item", "service", "product", "name"}),
		description: findHeaderIndex(norm, []string{"description", "details", "scope"}),
		quantity:    findHeaderIndex(norm, []string{"qty", "quantity", "units"}),
		rate:        findHeaderIndex(norm, []string{"unit price", "unit cost", "price", "rate", "cost"}),
		amount:      findHeaderIndex(norm, []string{"amount", "line total", "total"}),
	}
	if cols.description == cols.item {
		cols.description = -1
	}
	if cols.amount == cols.rate {
		cols.amount = -1
	}

	hasName := cols.item >= 0 || cols.description >= 0
	hasMoney := cols.rate >= 0 || cols.amount >= 0
	return cols, hasName && hasMoney
}

func (c columns) width() int {
	w := 0
	for _, idx := range []int{c.item, c.description, c.quantity, c.rate, c.amount} {
		if idx+1 > w {
			w = idx + 1
		}
	}
	return w
}

func (c columns) lineItem(cells []string) (internal.RawLineItem, bool) {
	name := pickCell(cells, c.item, -1)
	description := pickCell(cells, c.description, -1)
	if name == "" {
		name, description = description, ""
	}
	if name == "" {
		return internal.RawLineItem{}, false
	}

	quantity := pickCell(cells, c.quantity, -1)
	rate := pickCell(cells, c.rate, -1)
	if !reHasDigit.MatchString(rate) {
		rate = rateFromAmount(pickCell(cells, c.amount, -1), quantity)
	}
	if !reHasDigit.MatchString(rate) {
		return internal.RawLineItem{}, false
	}

	return internal.RawLineItem{Name: name, Description: description, Rate: rate, Quantity: quantity}, true
}

func rateFromAmount(amount, quantity string) string {
	total, ok := util.ParseAmount(amount)
	if !ok {
		return ""
	}
	if qty, ok := util.ParseQuantity(quantity); ok && qty > 1 {
		return total.Div(decimal.NewFromInt(int64(qty))).Round(2).StringFixed(2)
	}
	return total.StringFixed(2)
}

// extractTable scans rows for a header and reads line items below it until a
// totals row. Rows that carry only text are folded into the previous item's
// description.
func extractTable(rows [][]string) ([]internal.RawLineItem, int, bool) {
	for h, row := range rows {
		cols, ok := inferColumns(row)
		if !ok {
			continue
		}

		var items []internal.RawLineItem
		for _, cells := range rows[h+1:] {
			first := firstCell(cells)
			if first == "" {
				continue
			}
			if reTableStop.MatchString(first) {
				break
			}
			if item, ok := cols.lineItem(cells); ok {
				items = append(items, item)
				continue
			}
			if len(items) > 0 && !reHasDigit.MatchString(strings.Join(cells, " ")) {
				last := &items[len(items)-1]
				last.Description = util.CollapseSpaces(last.Description + " " + strings.Join(nonEmpty(cells), " "))
			}
		}
		if len(items) > 0 {
			return items, h, true
		}
	}
	return nil, -1, false
}

var labels = []struct {
	prefix string
	field  string
}{
	{"bill to", internal.FieldCustomerName},
	{"prepared for", internal.FieldCustomerName},
	{"customer name", internal.FieldCustomerName},
	{"customer", internal.FieldCustomerName},
	{"client", internal.FieldCustomerName},
	{"estimate date", internal.FieldDate},
	{"date", internal.FieldDate},
	{"estimate number", internal.FieldReferenceNumber},
	{"estimate no", internal.FieldReferenceNumber},
	{"estimate #", internal.FieldReferenceNumber},
	{"estimate", internal.FieldReferenceNumber},
	{"reference", internal.FieldReferenceNumber},
	{"phone", internal.FieldPhone},
	{"email", internal.FieldEmail},
	{"terms", internal.FieldTerms},
	{"notes", internal.FieldNotes},
	{"total", internal.FieldTotal},
}

// Fields whose values are recognisable enough to follow the label after a
// plain space, as in "Estimate ES-10191" or "Total 1,200.00".
var spaceSeparated = map[string]bool{
	internal.FieldReferenceNumber: true,
	internal.FieldDate:            true,
	internal.FieldTotal:           true,
}

// labelField recognises a cell such as "Bill To:" or "Estimate # ES-1" and
// returns the field it names plus any inline value.
func labelField(cell string) (string, string, bool) {
	text := util.CollapseSpaces(cell)
	lower := strings.ToLower(text)
	for _, l := range labels {
		if !strings.HasPrefix(lower, l.prefix) {
			continue
		}
		rest := text[len(l.prefix):]
		sep := strings.TrimLeft(rest, " ")
		switch {
		case rest == "", strings.HasPrefix(sep, ":"), strings.HasPrefix(sep, "#"), strings.HasPrefix(rest, "."):
		case rest[0] == ' ' && spaceSeparated[l.field]:
		default:
			continue
		}
		return l.field, strings.TrimSpace(strings.TrimLeft(rest, " :#.")), true
	}
	return "", "", false
}

// collectFields reads labelled values. A label's value is the rest of its
// cell, else the next cell in the row, else the cell below it, else the first
// cell of the next row.
func collectFields(rows [][]string) map[string]string {
	fields := map[string]string{}
	for i, row := range rows {
		for j, cell := range row {
			field, inline, ok := labelField(cell)
			if !ok {
				continue
			}
			if _, exists := fields[field]; exists {
				continue
			}

			options := []string{inline}
			if inline == "" {
				options = append(options, firstCell(row[j+1:]))
				if i+1 < len(rows) {
					options = append(options, pickCell(rows[i+1], j, -1), firstCell(rows[i+1]))
				}
			}
			for _, value := range options {
				if value != "" && acceptValue(field, value) {
					fields[field] = value
					break
				}
			}
		}
	}
	return fields
}

func acceptValue(field, value string) bool {
	switch field {
	case internal.FieldReferenceNumber:
		return reRefHasCode.MatchString(value)
	case internal.FieldDate, internal.FieldTotal:
		return reHasDigit.MatchString(value)
	case internal.FieldCustomerName:
		_, _, isLabel := labelField(value)
		return !isLabel
	}
	return true
}

func findHeaderIndex(headers []string, probes []string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return util.CollapseSpaces(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return util.CollapseSpaces(cells[fallback])
	}
	return ""
}

func firstCell(cells []string) string {
	for _, c := range cells {
		if c = util.CollapseSpaces(c); c != "" {
			return c
		}
	}
	return ""
}

func nonEmpty(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if c = util.CollapseSpaces(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.CollapseSpaces(c))
	}
	return out
}

func candidateFrom(rows [][]string) (internal.RawCandidate, error) {
	items, header, ok := extractTable(rows)
	if !ok {
		return internal.RawCandidate{}, errNoTable
	}

	fieldRows := make([][]string, 0, len(rows))
	fieldRows = append(fieldRows, rows[:header]...)
	for _, row := range rows[header+1:] {
		if reTableStop.MatchString(firstCell(row)) {
			fieldRows = append(fieldRows, row)
		}
	}
	return internal.RawCandidate{Fields: collectFields(fieldRows), LineItems: items}, nil
}
