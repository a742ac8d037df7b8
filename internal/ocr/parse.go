package ocr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"estimatesync/internal"
	"estimatesync/internal/util"
)

// OCR output has unreliable casing, so every pattern here is case-insensitive.
var (
	customerPatterns = []struct {
		re   *regexp.Regexp
		stop *regexp.Regexp
	}{
		{regexp.MustCompile(`(?i)\bBill To[:\s]+([^\n]+)`), regexp.MustCompile(`(?i)\s*\bEstimate\b.*$`)},
		{regexp.MustCompile(`(?i)\bCustomer(?:\s+Name)?[:\s]+([^\n]+)`), regexp.MustCompile(`(?i)\s*\b(?:Address|Phone|Email)\b.*$`)},
		{regexp.MustCompile(`(?i)\bClient[:\s]+([^\n]+)`), regexp.MustCompile(`(?i)\s*\b(?:Address|Phone|Email)\b.*$`)},
		{regexp.MustCompile(`(?im)^\s*Name[:\s]+([^\n]+)`), nil},
		{regexp.MustCompile(`(?im)^\s*(?:Prepared For|To)[:\s]+([^\n]+)`), nil},
	}

	estimatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bEstimate\s+(?:Number|No\.?|#)[:\s]*([A-Z0-9-]*\d[A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\bEstimate[:\s]+([A-Z0-9-]*\d[A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\bQuote\s+(?:Number|No\.?|#)[:\s]*([A-Z0-9-]*\d[A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\bQuote[:\s]+([A-Z0-9-]*\d[A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\b((?:ES|EST|QT)-\d+)`),
		regexp.MustCompile(`#\s*([A-Z0-9-]*\d[A-Z0-9-]*)`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)\bDate[: \t]+([^\n]+)$`),
		regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`),
		regexp.MustCompile(`\b(\d{1,2}-\d{1,2}-\d{4})\b`),
		regexp.MustCompile(`\b([A-Z][a-z]+ \d{1,2},? \d{4})\b`),
	}

	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bTotal[:\s]+\$?\s?([0-9][0-9,]*\.\d{2})`),
		regexp.MustCompile(`(?i)\bTotal Amount[:\s]+\$?\s?([0-9][0-9,]*\.\d{2})`),
		regexp.MustCompile(`(?i)\bBalance Due[:\s]+\$?\s?([0-9][0-9,]*\.\d{2})`),
		regexp.MustCompile(`(?i)\bTotal[^0-9\n]*\$?\s?([0-9][0-9,]*\.\d{2})`),
	}

	rePhone    = regexp.MustCompile(`(?i)\b(?:Phone|Tel)[: \t]+([\d \t().+-]{7,})`)
	reEmail    = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	reSection  = regexp.MustCompile(`^\s*(\d+)[. \t]+([A-Za-z][A-Za-z0-9 \t-]*?)[ \t:$-]+\$?\s?([0-9][0-9,]*\.\d{2})\s*$`)
	reGeneral  = regexp.MustCompile(`^\s*([A-Za-z0-9 \t-]*?[A-Za-z][A-Za-z0-9 \t-]*?)[ \t:$-]+\$?\s?([0-9][0-9,]*\.\d{2})\s*$`)
	reSummary  = regexp.MustCompile(`(?i)^\s*(?:sub\s*total|total|grand total|tax|balance|amount due|deposit)\b`)
	reSubtotal = regexp.MustCompile(`(?i)\bSubtotal[:\s]+\$?\s?([0-9][0-9,]*\.\d{2})`)
	reTotal    = regexp.MustCompile(`(?i)\bTotal[:\s]+\$?\s?([0-9][0-9,]*\.\d{2})`)
	rePrice    = regexp.MustCompile(`\$\d`)

	minItemPrice = decimal.NewFromInt(100)
)

// ParseText reads customer, reference, date and line items from OCR text.
// Only values that were found are set; the pipeline fills in the rest.
func ParseText(raw string) (internal.RawCandidate, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	if len(strings.TrimSpace(text)) < minTextLength {
		return internal.RawCandidate{}, internal.ErrLowConfidenceText
	}

	fields := map[string]string{}
	if name := customerName(text); name != "" {
		fields[internal.FieldCustomerName] = name
	}
	if ref := firstGroup(text, estimatePatterns); ref != "" {
		fields[internal.FieldReferenceNumber] = strings.ToUpper(ref)
	}
	if date := firstGroup(text, datePatterns); date != "" {
		fields[internal.FieldDate] = date
	}
	if total := firstGroup(text, totalPatterns); total != "" {
		fields[internal.FieldTotal] = total
	}
	if m := rePhone.FindStringSubmatch(text); m != nil {
		fields[internal.FieldPhone] = strings.TrimSpace(m[1])
	}
	if m := reEmail.FindString(text); m != "" {
		fields[internal.FieldEmail] = m
	}

	return internal.RawCandidate{Fields: fields, LineItems: lineItems(text)}, nil
}

// customerName applies the first label pattern that matches. A match that is
// too short to be a name still ends the search.
func customerName(text string) string {
	for _, p := range customerPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := m[1]
		if p.stop != nil {
			name = p.stop.ReplaceAllString(name, "")
		}
		name = util.CollapseSpaces(name)
		if len(name) > 3 {
			return name
		}
		return ""
	}
	return ""
}

func firstGroup(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

func lineItems(text string) []internal.RawLineItem {
	lines := strings.Split(text, "\n")
	if items := sectionItems(lines); len(items) > 0 {
		return items
	}
	if items := generalItems(lines); len(items) > 0 {
		return items
	}

	m := reSubtotal.FindStringSubmatch(text)
	if m == nil {
		m = reTotal.FindStringSubmatch(text)
	}
	if m == nil {
		return nil
	}
	return []internal.RawLineItem{{
		Name:        "1. Complete Project",
		Description: "Full project as described in PDF",
		Rate:        m[1],
		Quantity:    "1",
	}}
}

func sectionItems(lines []string) []internal.RawLineItem {
	var out []internal.RawLineItem
	for i, line := range lines {
		m := reSection.FindStringSubmatch(line)
		if m == nil || !aboveMinimum(m[3]) {
			continue
		}
		section := util.CollapseSpaces(strings.ReplaceAll(m[2], "-", " "))
		description := "Main category: " + section
		if next := nextLine(lines, i+1); len(next) > 5 && !rePrice.MatchString(next) && !reSection.MatchString(next) {
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

func generalItems(lines []string) []internal.RawLineItem {
	var out []internal.RawLineItem
	for _, line := range lines {
		if reSummary.MatchString(line) {
			continue
		}
		m := reGeneral.FindStringSubmatch(line)
		if m == nil || !aboveMinimum(m[2]) {
			continue
		}
		name := util.CollapseSpaces(m[1])
		if len(name) < 3 {
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

func aboveMinimum(amount string) bool {
	v, ok := util.ParseAmount(amount)
	return ok && v.GreaterThan(minItemPrice)
}

func nextLine(lines []string, from int) string {
	for i := from; i < len(lines); i++ {
		if line := util.CollapseSpaces(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
