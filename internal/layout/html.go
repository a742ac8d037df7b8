package layout

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"

	"estimatesync/internal"
	"estimatesync/internal/util"
)

// parseHTML handles Google Docs exported as HTML: the line items live in a
// table, the labelled fields in paragraphs or two-column tables.
func parseHTML(content []byte) (internal.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return internal.RawCandidate{}, err
	}

	var (
		items       []internal.RawLineItem
		tableFields map[string]string
		fieldRows   [][]string
		tableFound  bool
	)
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.CollapseSpaces(cell.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})

		if !tableFound {
			if candidate, err := candidateFrom(rows); err == nil {
				items = candidate.LineItems
				tableFields = candidate.Fields
				tableFound = true
				return
			}
		}
		fieldRows = append(fieldRows, rows...)
	})
	if !tableFound {
		return internal.RawCandidate{}, errNoTable
	}

	var blocks [][]string
	doc.Find("p,h1,h2,h3,h4,h5,h6,li").Each(func(_ int, s *goquery.Selection) {
		if s.Closest("table").Length() > 0 {
			return
		}
		if text := util.CollapseSpaces(s.Text()); text != "" {
			blocks = append(blocks, []string{text})
		}
	})

	fields := collectFields(blocks)
	for _, extra := range []map[string]string{tableFields, collectFields(fieldRows)} {
		for k, v := range extra {
			if _, exists := fields[k]; !exists {
				fields[k] = v
			}
		}
	}
	return internal.RawCandidate{Fields: fields, LineItems: items}, nil
}
