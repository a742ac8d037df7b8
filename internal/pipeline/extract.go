package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"estimatesync/internal"
	"estimatesync/internal/logging"
	"estimatesync/internal/metrics"
)

// Extractor runs strategies in priority order and returns the first
// successful candidate, normalized. When every strategy fails the sentinel
// default record is returned.
type Extractor struct {
	strategies []Strategy
	logger     *slog.Logger
	metrics    *metrics.Recorder
	failLoudly bool
}

type Option func(*Extractor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Extractor) { e.metrics = r }
}

// WithFailLoudly makes ExtractStrict report total failure instead of
// returning the default record.
func WithFailLoudly() Option {
	return func(e *Extractor) { e.failLoudly = true }
}

// WithStrategies replaces the strategy list.
func WithStrategies(strategies ...Strategy) Option {
	return func(e *Extractor) { e.strategies = strategies }
}

// NewExtractor builds the [layout, ocr, text] chain. Nil engines are left out.
func NewExtractor(layout LayoutEngine, ocr OCREngine, opts ...Option) *Extractor {
	e := &Extractor{}
	if layout != nil {
		e.strategies = append(e.strategies, LayoutStrategy(layout))
	}
	if ocr != nil {
		e.strategies = append(e.strategies, OCRStrategy(ocr))
	}
	e.strategies = append(e.strategies, TextStrategy())

	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDefault(e.logger)
	return e
}

func (e *Extractor) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for _, s := range e.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Process is the pipeline entry point: it never fails.
func (e *Extractor) Process(ctx context.Context, doc []byte) internal.EstimateRecord {
	return e.Extract(ctx, doc)
}

func (e *Extractor) Extract(ctx context.Context, doc []byte) internal.EstimateRecord {
	rec, err := e.run(ctx, doc)
	if err != nil {
		return DefaultRecord()
	}
	return rec
}

// ExtractStrict behaves like Extract unless the extractor was built with
// WithFailLoudly, in which case total failure returns ErrExtractionFailed
// joined with every strategy fault.
func (e *Extractor) ExtractStrict(ctx context.Context, doc []byte) (internal.EstimateRecord, error) {
	rec, err := e.run(ctx, doc)
	if err != nil {
		if e.failLoudly {
			return internal.EstimateRecord{}, err
		}
		return DefaultRecord(), nil
	}
	return rec, nil
}

func (e *Extractor) run(ctx context.Context, doc []byte) (internal.EstimateRecord, error) {
	var faults []error
	for _, s := range e.strategies {
		candidate, err := e.attempt(ctx, s, doc)
		if err != nil {
			fault := &internal.ParseFault{Strategy: s.Name(), Err: err}
			faults = append(faults, fault)
			e.metrics.StrategyAttempt(s.Name(), "failure")
			e.logger.Debug("extraction strategy failed", slog.String("strategy", s.Name()), slog.Any("error", err))
			continue
		}

		e.metrics.StrategyAttempt(s.Name(), "success")
		rec := Normalize(candidate)
		rec.Source = s.Name()
		e.logger.Debug("extraction strategy succeeded",
			slog.String("strategy", s.Name()),
			slog.String("customer", rec.CustomerName),
			slog.Int("line_items", len(rec.LineItems)),
		)
		return rec, nil
	}

	e.metrics.StrategyAttempt(SourceDefault, "success")
	e.logger.Warn("all extraction strategies failed, using default record", slog.Int("faults", len(faults)))
	return internal.EstimateRecord{}, errors.Join(append([]error{internal.ErrExtractionFailed}, faults...)...)
}

func (e *Extractor) attempt(ctx context.Context, s Strategy, doc []byte) (candidate internal.RawCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	candidate, err = s.Attempt(ctx, doc)
	if err != nil {
		return internal.RawCandidate{}, err
	}
	if candidate.Empty() {
		return internal.RawCandidate{}, errEmptyCandidate
	}
	return candidate, nil
}
