package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/expense-tracker/internal/app"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/core/async"
	"github.com/joseph-ayodele/expense-tracker/internal/ingest"
	"github.com/joseph-ayodele/expense-tracker/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue, err := app.NewQueue(cfg.Queue, a.Processor, logger)
	if err != nil {
		logger.Error("queue setup failed", "error", err)
		os.Exit(1)
	}

	if len(cfg.Ingest.WatchDirs) > 0 {
		files, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       cfg.Ingest.WatchDirs,
			InitialScan: cfg.Ingest.InitialScan,
			Debounce:    cfg.Ingest.Debounce,
			// stored copies and OCR artifacts must not be re-ingested
			SkipDirs: []string{a.Store.Dir(), cfg.Storage.ArtifactDir},
		}, logger)
		if err != nil {
			logger.Error("watcher setup failed", "error", err)
			os.Exit(1)
		}
		go feedQueue(ctx, queue, files, errs, logger)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("listen failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	svc := server.NewPipelineService(a.Processor, a.Jobs, a.Expenses, a.Exporter, logger)
	gs, hs := server.New(svc, logger)
	if err := server.Serve(ctx, gs, hs, lis, logger); err != nil {
		logger.Error("grpc serve failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ProcessTimeout)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

// feedQueue enqueues watched files until ctx ends or the watcher closes.
func feedQueue(ctx context.Context, q async.Queue, files <-chan string, errs <-chan error, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher error", "error", err)
		case path, ok := <-files:
			if !ok {
				return
			}
			err := q.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now()})
			if errors.Is(err, async.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return
			}
			if err != nil {
				logger.Warn("enqueue failed", "path", path, "error", err)
				continue
			}
			logger.Info("watch.enqueued", "path", path)
		}
	}
}
