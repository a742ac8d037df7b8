// Package layout reads estimates from documents that carry structure: the
// text layer of a PDF, spreadsheet cells, or HTML tables. It looks for a
// line-item table under a header row and for labelled fields such as
// "Bill To" and "Estimate #".
package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"estimatesync/internal"
	"estimatesync/internal/logging"
	"estimatesync/internal/util"
)

var errNoTable = errors.New("no line-item table found")

type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logging.OrDefault(logger)}
}

func (e *Engine) Parse(ctx context.Context, doc []byte) (internal.RawCandidate, error) {
	if err := ctx.Err(); err != nil {
		return internal.RawCandidate{}, err
	}

	kind := util.SniffKind(doc)
	var (
		candidate internal.RawCandidate
		err       error
	)
	switch kind {
	case internal.KindPDF:
		candidate, err = parsePDF(doc)
	case internal.KindXLSX:
		candidate, err = parseXLSX(doc)
	case internal.KindHTML:
		candidate, err = parseHTML(doc)
	default:
		return internal.RawCandidate{}, fmt.Errorf("%w: %s", internal.ErrUnsupportedDocument, kind)
	}
	if err != nil {
		return internal.RawCandidate{}, err
	}

	e.logger.Debug("layout parsed document",
		slog.String("kind", string(kind)),
		slog.Int("fields", len(candidate.Fields)),
		slog.Int("line_items", len(candidate.LineItems)),
	)
	return candidate, nil
}
