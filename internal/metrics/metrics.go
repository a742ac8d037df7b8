// Package metrics exposes Prometheus counters for extraction and batch runs.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "estimatesync"

type Recorder struct {
	strategyAttempts *prometheus.CounterVec
	documents        *prometheus.CounterVec
	cacheRefreshes   *prometheus.CounterVec
	cacheEntries     *prometheus.GaugeVec
	externalCalls    *prometheus.CounterVec
	batchDuration    prometheus.Histogram
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		strategyAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_attempts_total",
			Help:      "Extraction strategy attempts by outcome.",
		}, []string{"strategy", "outcome"}),
		documents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents handled by batch runs, by final status.",
		}, []string{"status"}),
		cacheRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refreshes_total",
			Help:      "Catalog and directory cache refreshes by outcome.",
		}, []string{"cache", "outcome"}),
		cacheEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Records held by each cache after the last refresh.",
		}, []string{"cache"}),
		externalCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls to external services by operation and outcome.",
		}, []string{"service", "op", "outcome"}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of folder batch runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

func (r *Recorder) StrategyAttempt(strategy, outcome string) {
	if r == nil {
		return
	}
	r.strategyAttempts.WithLabelValues(strategy, outcome).Inc()
}

func (r *Recorder) DocumentHandled(status string) {
	if r == nil {
		return
	}
	r.documents.WithLabelValues(status).Inc()
}

func (r *Recorder) CacheRefreshed(cache string, entries int, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else {
		r.cacheEntries.WithLabelValues(cache).Set(float64(entries))
	}
	r.cacheRefreshes.WithLabelValues(cache, outcome).Inc()
}

func (r *Recorder) ExternalCall(service, op string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.externalCalls.WithLabelValues(service, op, outcome).Inc()
}

func (r *Recorder) ObserveBatch(d time.Duration) {
	if r == nil {
		return
	}
	r.batchDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
