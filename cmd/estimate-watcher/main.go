package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"estimatesync/internal/app"
	"estimatesync/internal/config"
	"estimatesync/internal/logging"
	"estimatesync/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	a, err := app.New(cfg, logger)
	must(err)
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(a.InitProcessing(ctx))

	svc := watcher.NewService(a.Processor, watcher.Config{
		Schedule:    cfg.WatchSchedule,
		MetricsAddr: cfg.MetricsAddr,
		ReportDir:   filepath.Join(cfg.OutputDir, "watcher"),
	}, a.Registry, logger)

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
