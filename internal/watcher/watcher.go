// Package watcher runs folder batches on a cron schedule and serves
// Prometheus metrics while it does.
package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"estimatesync/internal"
	"estimatesync/internal/logging"
	"estimatesync/internal/metrics"
	"estimatesync/internal/pipeline"
)

const cycleTimeout = 30 * time.Minute

type Processor interface {
	ProcessFolder(ctx context.Context, opts pipeline.ProcessOptions) (internal.BatchResult, error)
}

type Config struct {
	Schedule    string
	MetricsAddr string
	// ReportDir receives one XLSX report per run; empty disables reports.
	ReportDir string
	Options   pipeline.ProcessOptions
}

type Service struct {
	processor Processor
	cfg       Config
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	lastRun   atomic.Pointer[internal.BatchResult]
}

func NewService(processor Processor, cfg Config, gatherer prometheus.Gatherer, logger *slog.Logger) *Service {
	return &Service{
		processor: processor,
		cfg:       cfg,
		gatherer:  gatherer,
		logger:    logging.OrDefault(logger),
	}
}

// Run schedules batches until ctx is cancelled. Overlapping ticks are
// skipped while a batch is still running.
func (s *Service) Run(ctx context.Context) error {
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.runCycle(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.cfg.Schedule, err)
	}

	var srv *http.Server
	serveErr := make(chan error, 1)
	if s.cfg.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              s.cfg.MetricsAddr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
		s.logger.Info("metrics server listening", "addr", s.cfg.MetricsAddr)
	}

	c.Start()
	s.logger.Info("watcher started", "schedule", s.cfg.Schedule, "jobs", len(c.Entries()))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	s.logger.Info("watcher stopping")
	<-c.Stop().Done()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics server shutdown", "error", err)
		}
	}
	return runErr
}

// RunOnce runs a single batch and writes its report.
func (s *Service) RunOnce(ctx context.Context) (internal.BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	result, err := s.processor.ProcessFolder(ctx, s.cfg.Options)
	if result.RunID != "" {
		s.lastRun.Store(&result)
	}
	if err != nil {
		return result, err
	}

	if s.cfg.ReportDir != "" && len(result.Entries) > 0 {
		out := filepath.Join(s.cfg.ReportDir, result.RunID+".xlsx")
		if err := pipeline.ExportBatchToXLSX(result, out); err != nil {
			s.logger.Warn("write run report", "run_id", result.RunID, "error", err)
		}
	}
	return result, nil
}

func (s *Service) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("watcher cycle failed", "run_id", result.RunID, "error", err)
		return
	}
	s.logger.Info("watcher cycle done",
		"run_id", result.RunID,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
}

type lastRunResponse struct {
	Status     string    `json:"status"`
	RunID      string    `json:"runId,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// Handler serves /metrics and a /healthz summary of the last run.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := lastRunResponse{Status: "ok"}
		if last := s.lastRun.Load(); last != nil {
			resp.RunID = last.RunID
			resp.FinishedAt = last.FinishedAt
			resp.Processed = last.Processed
			resp.Skipped = last.Skipped
			resp.Failed = last.Failed
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}
