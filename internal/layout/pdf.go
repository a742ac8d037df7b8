package layout

import (
	"bytes"
	"math"
	"sort"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"estimatesync/internal"
)

const (
	rowTolerance     = 2.0
	defaultFontSize  = 10.0
	wordGapFactor    = 0.25
	cellGapFactor    = 1.5
	headerMatchSlack = 12.0
)

type pdfCell struct {
	X, W float64
	Text string
}

func (c pdfCell) center() float64 { return c.X + c.W/2 }

type pdfRow struct {
	Y     float64
	Cells []pdfCell
}

func (r pdfRow) texts() []string {
	out := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		out = append(out, c.Text)
	}
	return out
}

func parsePDF(content []byte) (internal.RawCandidate, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return internal.RawCandidate{}, err
	}

	var rows []pdfRow
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows = append(rows, buildRows(p.Content().Text)...)
	}
	if len(rows) == 0 {
		return internal.RawCandidate{}, errNoTable
	}
	return candidateFromPDFRows(rows)
}

// candidateFromPDFRows finds the header row and re-aligns every following
// row onto the header's columns by horizontal position.
func candidateFromPDFRows(rows []pdfRow) (internal.RawCandidate, error) {
	plain := make([][]string, 0, len(rows))
	for _, row := range rows {
		plain = append(plain, row.texts())
	}

	for h, row := range rows {
		if _, ok := inferColumns(plain[h]); !ok {
			continue
		}

		aligned := make([][]string, 0, len(rows))
		aligned = append(aligned, plain[:h]...)
		aligned = append(aligned, plain[h])
		for _, next := range rows[h+1:] {
			aligned = append(aligned, alignToHeader(row, next))
		}
		if candidate, err := candidateFrom(aligned); err == nil {
			return candidate, nil
		}
	}
	return internal.RawCandidate{}, errNoTable
}

func alignToHeader(header, row pdfRow) []string {
	out := make([]string, len(header.Cells))
	for _, cell := range row.Cells {
		idx := nearestColumn(header, cell)
		out[idx] = strings.TrimSpace(out[idx] + " " + cell.Text)
	}
	return out
}

func nearestColumn(header pdfRow, cell pdfCell) int {
	best, bestDist := 0, math.MaxFloat64
	for i, h := range header.Cells {
		if cell.X >= h.X-headerMatchSlack && cell.X <= h.X+h.W+headerMatchSlack {
			return i
		}
		if d := math.Abs(cell.center() - h.center()); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// buildRows groups glyphs into rows by baseline and merges neighbouring
// glyphs into cells; a gap wider than cellGapFactor font sizes starts a new
// cell.
func buildRows(texts []pdf.Text) []pdfRow {
	type bucket struct {
		y     float64
		texts []pdf.Text
	}
	var buckets []bucket
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		placed := false
		for i := range buckets {
			if math.Abs(buckets[i].y-t.Y) <= rowTolerance {
				buckets[i].texts = append(buckets[i].texts, t)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, bucket{y: t.Y, texts: []pdf.Text{t}})
		}
	}

	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].y > buckets[j].y })

	rows := make([]pdfRow, 0, len(buckets))
	for _, b := range buckets {
		sort.SliceStable(b.texts, func(i, j int) bool { return b.texts[i].X < b.texts[j].X })
		rows = append(rows, pdfRow{Y: b.y, Cells: mergeCells(b.texts)})
	}
	return rows
}

func mergeCells(texts []pdf.Text) []pdfCell {
	var cells []pdfCell
	var cur *pdfCell
	var curSize float64

	for _, t := range texts {
		size := t.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		width := t.W
		if width <= 0 {
			width = float64(len([]rune(t.S))) * size * 0.5
		}

		if cur != nil {
			gap := t.X - (cur.X + cur.W)
			switch {
			case gap <= curSize*wordGapFactor:
				cur.Text += t.S
				cur.W = t.X + width - cur.X
				continue
			case gap <= curSize*cellGapFactor:
				cur.Text += " " + t.S
				cur.W = t.X + width - cur.X
				continue
			}
			cells = append(cells, finishCell(*cur))
		}
		cur = &pdfCell{X: t.X, W: width, Text: t.S}
		curSize = size
	}
	if cur != nil {
		cells = append(cells, finishCell(*cur))
	}
	return cells
}

func finishCell(c pdfCell) pdfCell {
	c.Text = strings.Join(strings.Fields(c.Text), " ")
	return c
}
