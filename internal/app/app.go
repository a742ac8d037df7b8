// Package app wires configuration into the services the commands run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"estimatesync/internal/accounting"
	"estimatesync/internal/catalog"
	"estimatesync/internal/config"
	"estimatesync/internal/filestore"
	"estimatesync/internal/filestore/drive"
	"estimatesync/internal/filestore/gcs"
	"estimatesync/internal/filestore/local"
	"estimatesync/internal/layout"
	"estimatesync/internal/logging"
	"estimatesync/internal/metrics"
	"estimatesync/internal/ocr"
	"estimatesync/internal/pipeline"
	"estimatesync/internal/storage"
)

// App holds the process-wide dependencies. New builds the parts every
// command needs; InitAccounting and InitProcessing add the parts that need
// credentials.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
	DB       *storage.DB

	Extractor *pipeline.Extractor

	Accounting *accounting.Client
	Items      *catalog.ItemCatalog
	Customers  *catalog.CustomerDirectory
	Enricher   *pipeline.Enricher

	Store     filestore.Store
	Inbox     string
	Processor *pipeline.ProcessingService

	closers []func() error
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logging.OrDefault(logger)}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewRecorder(a.Registry)

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	a.Extractor = NewExtractor(cfg, a.Logger, a.Metrics)
	return a, nil
}

// NewExtractor builds the layout, OCR and text strategy chain.
func NewExtractor(cfg config.Config, logger *slog.Logger, rec *metrics.Recorder) *pipeline.Extractor {
	layoutEngine := layout.NewEngine(logger)
	ocrEngine := ocr.NewEngine(ocr.Config{
		Pdftoppm:  cfg.OCRPdftoppm,
		Tesseract: cfg.OCRTesseract,
		Lang:      cfg.OCRLang,
		DPI:       cfg.OCRDPI,
		MaxPages:  cfg.OCRMaxPages,
	}, logger)

	opts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithMetrics(rec)}
	if cfg.ExtractFailLoudly {
		opts = append(opts, pipeline.WithFailLoudly())
	}
	return pipeline.NewExtractor(layoutEngine, ocrEngine, opts...)
}

// InitAccounting builds the Zoho client, both caches and the enricher.
func (a *App) InitAccounting(ctx context.Context) error {
	if a.Accounting != nil {
		return nil
	}
	if err := a.Config.RequireZoho(); err != nil {
		return err
	}

	a.Accounting = accounting.NewClient(ctx, a.Config,
		accounting.WithLogger(a.Logger),
		accounting.WithMetrics(a.Metrics),
	)

	cacheOpts := []catalog.Option{
		catalog.WithStaleAfter(a.Config.CacheStaleAfter),
		catalog.WithLogger(a.Logger),
		catalog.WithMetrics(a.Metrics),
	}
	items := accounting.ItemSource{Client: a.Accounting}
	contacts := accounting.ContactSource{Client: a.Accounting}
	a.Items = catalog.NewItemCatalog(items, append(cacheOpts, catalog.WithCreator(items))...)
	a.Customers = catalog.NewCustomerDirectory(contacts, a.Config.ZohoDefaultCustomerID, append(cacheOpts, catalog.WithCreator(contacts))...)

	enricherOpts := []pipeline.EnricherOption{pipeline.WithEnricherLogger(a.Logger)}
	if a.Config.CreateMissingItems {
		enricherOpts = append(enricherOpts, pipeline.WithCreateMissingItems())
	}
	if a.Config.CreateMissingCustomers {
		enricherOpts = append(enricherOpts, pipeline.WithCreateMissingCustomers())
	}
	a.Enricher = pipeline.NewEnricher(a.Items, a.Customers, enricherOpts...)

	a.Logger.Info("accounting initialized", "organization_id", a.Config.ZohoOrganizationID)
	return nil
}

// WarmCaches refreshes the item catalog and customer directory.
func (a *App) WarmCaches(ctx context.Context) error {
	if a.Items == nil || a.Customers == nil {
		return errors.New("accounting not initialized")
	}
	return catalog.Warm(ctx, a.DB, a.Items, a.Customers)
}

// InitProcessing builds the file store for the configured provider and the
// processing service on top of it.
func (a *App) InitProcessing(ctx context.Context) error {
	if a.Processor != nil {
		return nil
	}
	if err := a.InitAccounting(ctx); err != nil {
		return err
	}
	if err := a.initFileStore(ctx); err != nil {
		return err
	}

	a.Processor = pipeline.NewProcessingService(pipeline.Services{
		Store:      a.Store,
		Extractor:  a.Extractor,
		Enricher:   a.Enricher,
		Accounting: a.Accounting,
		Ledger:     a.DB,
		Warm:       a.WarmCaches,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
	}, a.Inbox, a.Config.DriveProcessedFolderName)
	return nil
}

func (a *App) initFileStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.FileStoreProvider {
	case config.ProviderDrive:
		if err := cfg.Require("DRIVE_FOLDER_ID", cfg.DriveFolderID); err != nil {
			return err
		}
		store, err := drive.New(ctx, cfg.GoogleCredentialsFile, a.Logger)
		if err != nil {
			return err
		}
		a.Store, a.Inbox = store, cfg.DriveFolderID
	case config.ProviderGCS:
		if err := cfg.Require("GCS_BUCKET", cfg.GCSBucket); err != nil {
			return err
		}
		store, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSProcessedPrefix, a.Logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		a.Store, a.Inbox = store, cfg.GCSInboxPrefix
	case config.ProviderLocal:
		a.Store, a.Inbox = local.New(), cfg.LocalInboxDir
	default:
		return fmt.Errorf("unsupported file store provider: %s", cfg.FileStoreProvider)
	}
	a.Logger.Info("file store initialized", "provider", cfg.FileStoreProvider, "inbox", a.Inbox)
	return nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
