package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimatesync/internal"
	"estimatesync/internal/metrics"
)

type fakeStrategy struct {
	name      string
	candidate internal.RawCandidate
	err       error
	panicMsg  string
	calls     int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Attempt(context.Context, []byte) (internal.RawCandidate, error) {
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.candidate, f.err
}

type fakeEngine struct {
	candidate internal.RawCandidate
	err       error
}

func (f fakeEngine) Parse(context.Context, []byte) (internal.RawCandidate, error) {
	return f.candidate, f.err
}

func TestExtractAllStrategiesFail(t *testing.T) {
	e := NewExtractor(
		fakeEngine{err: errors.New("no table")},
		fakeEngine{err: errors.New("tesseract missing")},
	)

	rec := e.Extract(context.Background(), []byte("short"))

	assert.Equal(t, DefaultCustomerName, rec.CustomerName)
	assert.Equal(t, DefaultDate, rec.Date)
	assert.Equal(t, DefaultReferenceNumber, rec.ReferenceNumber)
	assert.Equal(t, SourceDefault, rec.Source)
	require.Len(t, rec.LineItems, 5)
	assert.Equal(t, DefaultLineItems(), rec.LineItems)
}

func TestExtractFirstSuccessWins(t *testing.T) {
	layout := &fakeStrategy{name: StrategyLayout, err: errors.New("no table")}
	ocr := &fakeStrategy{name: StrategyOCR, candidate: internal.RawCandidate{
		Fields:    map[string]string{internal.FieldCustomerName: "Pat Smith"},
		LineItems: []internal.RawLineItem{{Name: "Vanity", Rate: "850.00", Quantity: "1"}},
	}}
	text := &fakeStrategy{name: StrategyText}

	e := NewExtractor(nil, nil, WithStrategies(layout, ocr, text))
	rec := e.Process(context.Background(), []byte("doc"))

	assert.Equal(t, "Pat Smith", rec.CustomerName)
	assert.Equal(t, StrategyOCR, rec.Source)
	require.Len(t, rec.LineItems, 1)
	assert.Equal(t, 1, layout.calls)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, 0, text.calls)
}

func TestExtractTreatsPanicAndEmptyAsFaults(t *testing.T) {
	panicky := &fakeStrategy{name: StrategyLayout, panicMsg: "index out of range"}
	empty := &fakeStrategy{name: StrategyOCR}

	reg := prometheus.NewRegistry()
	e := NewExtractor(nil, nil,
		WithStrategies(panicky, empty),
		WithMetrics(metrics.NewRecorder(reg)),
		WithFailLoudly(),
	)

	_, err := e.ExtractStrict(context.Background(), nil)
	require.ErrorIs(t, err, internal.ErrExtractionFailed)
	require.ErrorIs(t, err, errEmptyCandidate)

	var fault *internal.ParseFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, StrategyLayout, fault.Strategy)
	assert.Contains(t, fault.Error(), "index out of range")
}

func TestExtractStrictWithoutFailLoudlyReturnsDefault(t *testing.T) {
	e := NewExtractor(nil, nil, WithStrategies(&fakeStrategy{name: "x", err: errors.New("nope")}))

	rec, err := e.ExtractStrict(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCustomerName, rec.CustomerName)
}

func TestExtractTextStrategyEndToEnd(t *testing.T) {
	e := NewExtractor(fakeEngine{err: errors.New("no table")}, nil)

	doc := []byte("Estimate ES-555\nDate: May 1, 2025\nBill To: Chris Park\n\n1 Kitchen-Demo 2,574.00\n")
	rec := e.Extract(context.Background(), doc)

	assert.Equal(t, StrategyText, rec.Source)
	assert.Equal(t, "Chris Park", rec.CustomerName)
	assert.Equal(t, "ES-555", rec.ReferenceNumber)
	assert.Equal(t, "2025-05-01", rec.Date)
	require.Len(t, rec.LineItems, 1)
	assert.Equal(t, "1. Kitchen Demo", rec.LineItems[0].Name)
	assert.True(t, rec.LineItems[0].Rate.Equal(mustDecimal(t, "2574.00")))
	assert.Equal(t, 1, rec.LineItems[0].Quantity)
}

func TestNewExtractorOrder(t *testing.T) {
	e := NewExtractor(fakeEngine{}, fakeEngine{})
	assert.Equal(t, []string{StrategyLayout, StrategyOCR, StrategyText}, e.Strategies())

	e = NewExtractor(nil, fakeEngine{})
	assert.Equal(t, []string{StrategyOCR, StrategyText}, e.Strategies())
}
