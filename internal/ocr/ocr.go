// Package ocr recognises the text of scanned estimates with pdftoppm and
// tesseract, then reads fields and line items out of the recognised text.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"estimatesync/internal"
	"estimatesync/internal/logging"
	"estimatesync/internal/util"
)

const minTextLength = 50

type Config struct {
	Pdftoppm  string
	Tesseract string
	Lang      string
	DPI       int
	MaxPages  int
	PSM       int // tesseract page segmentation mode; 0 leaves the default
}

type Engine struct {
	cfg       Config
	runner    Runner
	logger    *slog.Logger
	pageCount func(path string) (int, error)
}

type Option func(*Engine)

// WithRunner replaces the exec-based command runner.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithPageCounter replaces the pdfcpu page counter.
func WithPageCounter(fn func(path string) (int, error)) Option {
	return func(e *Engine) { e.pageCount = fn }
}

func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}

	logger = logging.OrDefault(logger)
	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		runner:    execRunner{logger: logger},
		pageCount: api.PageCountFile,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse recognises the document text and extracts a candidate from it.
func (e *Engine) Parse(ctx context.Context, doc []byte) (internal.RawCandidate, error) {
	text, err := e.Recognize(ctx, doc)
	if err != nil {
		return internal.RawCandidate{}, err
	}
	return ParseText(text)
}

// Recognize returns the OCR text of a PDF or image. Pages are separated by
// a form feed.
func (e *Engine) Recognize(ctx context.Context, doc []byte) (string, error) {
	kind := util.SniffKind(doc)
	if kind != internal.KindPDF && kind != internal.KindImage {
		return "", fmt.Errorf("%w: %s", internal.ErrUnsupportedDocument, kind)
	}

	tmpDir, err := os.MkdirTemp("", "estimatesync-ocr-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("remove ocr temp dir", "dir", tmpDir, "error", err)
		}
	}()

	var text string
	if kind == internal.KindPDF {
		text, err = e.pdfToText(ctx, tmpDir, doc)
	} else {
		text, err = e.imageToText(ctx, tmpDir, doc)
	}
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(text)) < minTextLength {
		return "", internal.ErrLowConfidenceText
	}
	return text, nil
}

func (e *Engine) pdfToText(ctx context.Context, dir string, doc []byte) (string, error) {
	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, doc, 0o600); err != nil {
		return "", err
	}

	pages, err := e.pageCount(in)
	if err != nil {
		return "", fmt.Errorf("pdf page count: %w", err)
	}
	if pages == 0 {
		return "", errors.New("pdf has no pages")
	}
	last := min(pages, e.cfg.MaxPages)

	prefix := filepath.Join(dir, "page")
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-png",
		"-f", "1", "-l", strconv.Itoa(last),
		in, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, util.Truncate(strings.TrimSpace(string(errb)), 200))
	}

	// pdftoppm writes prefix-1.png, prefix-2.png, ... zero padded to the page count width
	images, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(images)
	if len(images) == 0 {
		return "", errors.New("pdftoppm produced no images")
	}
	if len(images) > e.cfg.MaxPages {
		images = images[:e.cfg.MaxPages]
	}

	var b strings.Builder
	var failures []error
	for _, img := range images {
		txt, err := e.tesseract(ctx, img)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	if b.Len() == 0 && len(failures) > 0 {
		return "", errors.Join(failures...)
	}
	e.logger.Debug("ocr pdf", "pages", pages, "rendered", len(images), "failed_pages", len(failures))
	return b.String(), nil
}

func (e *Engine) imageToText(ctx context.Context, dir string, doc []byte) (string, error) {
	in := filepath.Join(dir, "in"+imageExt(doc))
	if err := os.WriteFile(in, doc, 0o600); err != nil {
		return "", err
	}
	return e.tesseract(ctx, in)
}

func (e *Engine) tesseract(ctx context.Context, img string) (string, error) {
	args := []string{img, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract %s: %w: %s", filepath.Base(img), err, util.Truncate(strings.TrimSpace(string(errb)), 200))
	}
	return string(out), nil
}

func imageExt(doc []byte) string {
	switch {
	case len(doc) >= 8 && string(doc[1:4]) == "PNG":
		return ".png"
	case len(doc) >= 3 && doc[0] == 0xFF && doc[1] == 0xD8:
		return ".jpg"
	default:
		return ".tif"
	}
}
