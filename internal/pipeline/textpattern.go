package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"estimatesync/internal"
	"estimatesync/internal/util"
)

const minTextLength = 50

var (
	reBillTo        = regexp.MustCompile(`(?ms)Bill To[:\s]+(.*?)(?:\n[ \t]*\n|\n[A-Z]|Estimate|$)`)
	reEstimateRef   = regexp.MustCompile(`Estimate\s+(?:(?:Number|No\.?|#)[:\s]*)?([A-Z]*-?\d[A-Z0-9-]*)`)
	reESNumber      = regexp.MustCompile(`\bES-\d+\b`)
	reDateLine      = regexp.MustCompile(`(?m)\bDate[:\s]+(.+)$`)
	rePhone         = regexp.MustCompile(`(?:Phone|Tel)[: \t]+([\d \t().+-]{7,})`)
	reEmail         = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	reNumberedLine  = regexp.MustCompile(`^\s*(\d+)\s+([A-Za-z0-9_]+(?:-[A-Za-z0-9_]+)*)\s+\$?([0-9][0-9,]*\.\d{2})\s*$`)
	reCurrencyLine  = regexp.MustCompile(`^\s*(.*?[A-Za-z].*?)\s*[:-]?\s+\$\s?([0-9][0-9,]*\.\d{2})\s*$`)
	reSubtotalLine  = regexp.MustCompile(`Subtotal[:\s]*\$\s?([0-9][0-9,]*\.\d{2})`)
	reSummaryLine   = regexp.MustCompile(`(?i)^\s*(?:sub\s*total|total|grand total|tax|balance|amount due|deposit)\b`)
	reTotalLine     = regexp.MustCompile(`\bTotal[:\s]+\$?\s?([0-9][0-9,]*\.\d{2})`)
	currencyMinimum = decimal.NewFromInt(100)
)

// ExtractFromText pulls an estimate out of unstructured text with regular
// expressions. Fields that cannot be found fall back to the sentinel
// defaults, so the only failure is text too short to trust.
func ExtractFromText(raw string) (internal.RawCandidate, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	if len(strings.TrimSpace(text)) < minTextLength {
		return internal.RawCandidate{}, internal.ErrLowConfidenceText
	}

	fields := map[string]string{
		internal.FieldCustomerName:    DefaultCustomerName,
		internal.FieldReferenceNumber: DefaultReferenceNumber,
		internal.FieldDate:            DefaultDate,
	}

	if m := reBillTo.FindStringSubmatch(text); m != nil {
		if name := util.CollapseSpaces(m[1]); name != "" {
			fields[internal.FieldCustomerName] = name
		}
	}

	if m := reEstimateRef.FindStringSubmatch(text); m != nil {
		fields[internal.FieldReferenceNumber] = m[1]
	} else if m := reESNumber.FindString(text); m != "" {
		fields[internal.FieldReferenceNumber] = m
	}

	if m := reDateLine.FindStringSubmatch(text); m != nil {
		if date, ok := NormalizeDate(m[1]); ok {
			fields[internal.FieldDate] = date
		}
	}

	if m := rePhone.FindStringSubmatch(text); m != nil {
		fields[internal.FieldPhone] = strings.TrimSpace(m[1])
	}
	if m := reEmail.FindString(text); m != "" {
		fields[internal.FieldEmail] = m
	}
	if m := reTotalLine.FindStringSubmatch(text); m != nil {
		fields[internal.FieldTotal] = m[1]
	}

	return internal.RawCandidate{Fields: fields, LineItems: textLineItems(text)}, nil
}

func textLineItems(text string) []internal.RawLineItem {
	lines := strings.Split(text, "\n")

	if items := numberedSectionItems(lines); len(items) > 0 {
		return items
	}
	if items := currencyLineItems(lines); len(items) > 0 {
		return items
	}
	if item, ok := singleTotalItem(text); ok {
		return []internal.RawLineItem{item}
	}
	return rawDefaultLineItems()
}

func numberedSectionItems(lines []string) []internal.RawLineItem {
	var out []internal.RawLineItem
	for i, line := range lines {
		m := reNumberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		section := strings.ReplaceAll(m[2], "-", " ")
		description := fmt.Sprintf("Main category: %s", section)
		if next, ok := nextNonBlank(lines, i+1); ok && !reNumberedLine.MatchString(next) {
			description = next
		}
		out = append(out, internal.RawLineItem{
			Name:        fmt.Sprintf("%s. %s", m[1], section),
			Description: description,
			Rate:        m[3],
			Quantity:    "1",
		})
	}
	return out
}

func currencyLineItems(lines []string) []internal.RawLineItem {
	var out []internal.RawLineItem
	for _, line := range lines {
		if reSummaryLine.MatchString(line) {
			continue
		}
		m := reCurrencyLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		amount, ok := util.ParseAmount(m[2])
		if !ok || !amount.GreaterThan(currencyMinimum) {
			continue
		}
		name := strings.TrimRight(util.CollapseSpaces(m[1]), ":- ")
		if name == "" {
			continue
		}
		out = append(out, internal.RawLineItem{
			Name:        name,
			Description: "Item from PDF: " + name,
			Rate:        m[2],
			Quantity:    "1",
		})
	}
	return out
}

func singleTotalItem(text string) (internal.RawLineItem, bool) {
	m := reSubtotalLine.FindStringSubmatch(text)
	if m == nil {
		m = reTotalLine.FindStringSubmatch(text)
	}
	if m == nil {
		return internal.RawLineItem{}, false
	}
	return internal.RawLineItem{
		Name:        "1. Complete Project",
		Description: "Full project as described in PDF",
		Rate:        m[1],
		Quantity:    "1",
	}, true
}

func nextNonBlank(lines []string, from int) (string, bool) {
	for i := from; i < len(lines); i++ {
		if line := util.CollapseSpaces(lines[i]); line != "" {
			return line, true
		}
	}
	return "", false
}
