package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"estimatesync/internal"
	"estimatesync/internal/filestore"
	"estimatesync/internal/logging"
	"estimatesync/internal/metrics"
)

// Accounting receives finished estimates.
type Accounting interface {
	CreateEstimate(ctx context.Context, rec internal.EnrichedRecord) (internal.EstimateRef, error)
	AttachFile(ctx context.Context, estimateID string, content []byte, filename string) error
}

// Ledger records runs and per-document outcomes; storage.DB satisfies it.
type Ledger interface {
	InsertRun(runID string, startedAt time.Time) error
	FinishRun(result internal.BatchResult) error
	RecordDocument(runID string, entry internal.BatchEntry) error
	LastDocument(fileID string) (*internal.BatchEntry, error)
}

type ProcessOptions struct {
	NoMove     bool
	PDFOnly    bool
	ExcelOnly  bool
	EstimateID string // attach to this existing estimate instead of creating one
	Limit      int
}

// Services are the collaborators of a ProcessingService. Ledger, Warm,
// Logger and Metrics are optional.
type Services struct {
	Store      filestore.Store
	Extractor  *Extractor
	Enricher   *Enricher
	Accounting Accounting
	Ledger     Ledger
	Warm       func(ctx context.Context) error
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
}

// ProcessingService moves documents from an inbox folder into the
// accounting system, one at a time.
type ProcessingService struct {
	svc           Services
	inbox         string
	processedName string
	logger        *slog.Logger
	now           func() time.Time
}

func NewProcessingService(svc Services, inbox, processedName string) *ProcessingService {
	return &ProcessingService{
		svc:           svc,
		inbox:         inbox,
		processedName: processedName,
		logger:        logging.OrDefault(svc.Logger),
		now:           time.Now,
	}
}

type batchRun struct {
	result    internal.BatchResult
	opts      ProcessOptions
	processed string
}

// ProcessFolder runs one batch over the inbox. Per-document failures are
// recorded in the result and never abort the batch; only listing the inbox
// or cancellation does.
func (s *ProcessingService) ProcessFolder(ctx context.Context, opts ProcessOptions) (internal.BatchResult, error) {
	if opts.PDFOnly && opts.ExcelOnly {
		return internal.BatchResult{}, errors.New("pdf-only and excel-only are mutually exclusive")
	}

	run := &batchRun{opts: opts}
	run.result.RunID = uuid.NewString()
	run.result.StartedAt = s.now().UTC()
	logger := s.logger.With("run_id", run.result.RunID)

	if s.svc.Ledger != nil {
		if err := s.svc.Ledger.InsertRun(run.result.RunID, run.result.StartedAt); err != nil {
			return run.result, fmt.Errorf("ledger insert run: %w", err)
		}
	}
	err := s.runBatch(ctx, run, logger)
	s.finish(run, logger)
	return run.result, err
}

func (s *ProcessingService) runBatch(ctx context.Context, run *batchRun, logger *slog.Logger) error {
	if s.svc.Warm != nil {
		if err := s.svc.Warm(ctx); err != nil {
			logger.Warn("cache warm-up failed, continuing with stale caches", "error", err)
		}
	}

	files, err := s.svc.Store.List(ctx, s.inbox)
	if err != nil {
		return fmt.Errorf("list inbox: %w", err)
	}
	files = selectFiles(files, run.opts)
	logger.Info("batch started", "files", len(files), "inbox", s.inbox)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := s.processFile(ctx, run, file, logger)
		run.result.Add(entry)
		s.record(run, entry, logger)
		s.svc.Metrics.DocumentHandled(string(entry.Status))
	}
	return nil
}

func (s *ProcessingService) finish(run *batchRun, logger *slog.Logger) {
	run.result.FinishedAt = s.now().UTC()
	s.svc.Metrics.ObserveBatch(run.result.FinishedAt.Sub(run.result.StartedAt))
	if s.svc.Ledger != nil {
		if err := s.svc.Ledger.FinishRun(run.result); err != nil {
			logger.Error("ledger finish run", "error", err)
		}
	}
	logger.Info("batch finished",
		"processed", run.result.Processed,
		"skipped", run.result.Skipped,
		"failed", run.result.Failed,
	)
}

func (s *ProcessingService) record(run *batchRun, entry internal.BatchEntry, logger *slog.Logger) {
	if s.svc.Ledger == nil {
		return
	}
	if err := s.svc.Ledger.RecordDocument(run.result.RunID, entry); err != nil {
		logger.Error("ledger record document", "file_id", entry.FileID, "error", err)
	}
}

func selectFiles(files []filestore.File, opts ProcessOptions) []filestore.File {
	out := make([]filestore.File, 0, len(files))
	for _, f := range files {
		kind := DetectDocumentKind(f.Name, f.MimeType, nil)
		if opts.PDFOnly && kind != internal.KindPDF {
			continue
		}
		if opts.ExcelOnly && kind != internal.KindXLSX {
			continue
		}
		out = append(out, f)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out
}

func (s *ProcessingService) processFile(ctx context.Context, run *batchRun, file filestore.File, logger *slog.Logger) internal.BatchEntry {
	logger = logger.With("file_id", file.ID, "file", file.Name)
	entry := internal.BatchEntry{
		FileID:   file.ID,
		FileName: file.Name,
		Kind:     DetectDocumentKind(file.Name, file.MimeType, nil),
	}
	fail := func(status internal.DocumentStatus, err error) internal.BatchEntry {
		entry.Status = status
		entry.Error = err.Error()
		logger.Warn("document not processed", "status", status, "error", err)
		return entry
	}

	if done, err := s.alreadySubmitted(file.ID); err != nil {
		logger.Warn("ledger lookup failed", "error", err)
	} else if done != nil {
		entry.EstimateID = done.EstimateID
		entry.EstimateNumber = done.EstimateNumber
		entry.CustomerName = done.CustomerName
		if err := s.move(ctx, run, file); err != nil {
			return fail(internal.StatusFailed, err)
		}
		entry.Status = internal.StatusSkipped
		entry.Error = "already submitted as estimate " + done.EstimateID
		logger.Info("document already submitted, moved without resubmitting", "estimate_id", done.EstimateID)
		return entry
	}

	content, err := s.svc.Store.Download(ctx, file)
	if err != nil {
		return fail(internal.StatusFailed, err)
	}
	entry.Kind = DetectDocumentKind(file.Name, file.MimeType, content)

	rec, err := s.svc.Extractor.ExtractStrict(ctx, content)
	if err != nil {
		return fail(internal.StatusFailed, err)
	}
	entry.Source = rec.Source
	entry.CustomerName = rec.CustomerName
	entry.LineItems = len(rec.LineItems)

	enriched, err := s.svc.Enricher.ResolveAndEnrich(ctx, rec)
	if err != nil {
		if errors.Is(err, internal.ErrUnresolvableCustomer) {
			return fail(internal.StatusSkipped, err)
		}
		return fail(internal.StatusFailed, err)
	}
	entry.Unresolved = len(enriched.UnresolvedItems)

	ref := internal.EstimateRef{ID: run.opts.EstimateID}
	if ref.ID == "" {
		ref, err = s.svc.Accounting.CreateEstimate(ctx, enriched)
		if err != nil {
			return fail(internal.StatusFailed, err)
		}
	}
	entry.EstimateID = ref.ID
	entry.EstimateNumber = ref.Number
	entry.Status = internal.StatusSubmitted
	s.record(run, entry, logger)

	if err := s.svc.Accounting.AttachFile(ctx, ref.ID, content, file.Name); err != nil {
		logger.Warn("attach source document failed", "estimate_id", ref.ID, "error", err)
	}

	if err := s.move(ctx, run, file); err != nil {
		entry.Error = err.Error()
		logger.Error("move to processed folder failed", "error", err)
		return entry
	}

	entry.Status = internal.StatusProcessed
	logger.Info("document processed",
		"estimate_id", ref.ID,
		"estimate_number", ref.Number,
		"source", rec.Source,
		"unresolved", entry.Unresolved,
	)
	return entry
}

// alreadySubmitted returns the last ledger entry for the file when it shows
// an estimate was already created from it.
func (s *ProcessingService) alreadySubmitted(fileID string) (*internal.BatchEntry, error) {
	if s.svc.Ledger == nil {
		return nil, nil
	}
	last, err := s.svc.Ledger.LastDocument(fileID)
	if err != nil || last == nil {
		return nil, err
	}
	if last.EstimateID == "" {
		return nil, nil
	}
	if last.Status == internal.StatusSubmitted || last.Status == internal.StatusProcessed {
		return last, nil
	}
	return nil, nil
}

func (s *ProcessingService) move(ctx context.Context, run *batchRun, file filestore.File) error {
	if run.opts.NoMove {
		return nil
	}
	if run.processed == "" {
		folder, err := s.svc.Store.EnsureFolder(ctx, s.inbox, s.processedName)
		if err != nil {
			return fmt.Errorf("processed folder: %w", err)
		}
		run.processed = folder
	}
	if err := s.svc.Store.Move(ctx, file.ID, s.inbox, run.processed); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}
