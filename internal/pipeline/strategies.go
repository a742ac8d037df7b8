package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"

	"estimatesync/internal"
	"estimatesync/internal/util"
)

const (
	StrategyLayout = "layout"
	StrategyOCR    = "ocr"
	StrategyText   = "text"
)

var errEmptyCandidate = errors.New("strategy produced no fields and no line items")

// Strategy is one way of turning a raw document into a candidate record.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, doc []byte) (internal.RawCandidate, error)
}

// LayoutEngine reads tables and labelled fields from documents with a text
// layer (PDF, XLSX, HTML).
type LayoutEngine interface {
	Parse(ctx context.Context, doc []byte) (internal.RawCandidate, error)
}

// OCREngine rasterises a document and recognises its text.
type OCREngine interface {
	Parse(ctx context.Context, doc []byte) (internal.RawCandidate, error)
}

type engineStrategy struct {
	name   string
	engine interface {
		Parse(ctx context.Context, doc []byte) (internal.RawCandidate, error)
	}
}

func (s engineStrategy) Name() string { return s.name }

func (s engineStrategy) Attempt(ctx context.Context, doc []byte) (internal.RawCandidate, error) {
	return s.engine.Parse(ctx, doc)
}

func LayoutStrategy(engine LayoutEngine) Strategy {
	return engineStrategy{name: StrategyLayout, engine: engine}
}

func OCRStrategy(engine OCREngine) Strategy {
	return engineStrategy{name: StrategyOCR, engine: engine}
}

type textStrategy struct{}

// TextStrategy runs the regular-expression extractor over the document's
// plain text.
func TextStrategy() Strategy { return textStrategy{} }

func (textStrategy) Name() string { return StrategyText }

func (textStrategy) Attempt(ctx context.Context, doc []byte) (internal.RawCandidate, error) {
	if err := ctx.Err(); err != nil {
		return internal.RawCandidate{}, err
	}
	text, err := DocumentText(doc)
	if err != nil {
		return internal.RawCandidate{}, err
	}
	return ExtractFromText(text)
}

// DocumentText returns the plain text of a PDF, or the bytes themselves when
// they are valid UTF-8.
func DocumentText(doc []byte) (string, error) {
	switch util.SniffKind(doc) {
	case internal.KindPDF:
		return pdfPlainText(doc)
	case internal.KindText, internal.KindHTML:
		return string(doc), nil
	}
	if utf8.Valid(doc) {
		return string(doc), nil
	}
	return "", internal.ErrUnsupportedDocument
}

func pdfPlainText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			text, perr := p.GetPlainText(nil)
			if perr != nil {
				continue
			}
			sb.WriteString(text)
			sb.WriteString("\n")
			continue
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" {
					words = append(words, s)
				}
			}
			if len(words) > 0 {
				sb.WriteString(strings.Join(words, " "))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
