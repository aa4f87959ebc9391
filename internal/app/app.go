// Package app wires configuration into a ready pipeline. The binaries under
// cmd/ share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/core"
	"github.com/joseph-ayodele/expense-tracker/internal/core/async"
	"github.com/joseph-ayodele/expense-tracker/internal/core/extract"
	"github.com/joseph-ayodele/expense-tracker/internal/core/llm"
	"github.com/joseph-ayodele/expense-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/expense-tracker/internal/export"
	"github.com/joseph-ayodele/expense-tracker/internal/ingest"
	"github.com/joseph-ayodele/expense-tracker/internal/repository"
	"github.com/joseph-ayodele/expense-tracker/internal/services/category"
	"github.com/joseph-ayodele/expense-tracker/internal/services/expense"
)

// App holds the long-lived pieces of a running pipeline.
type App struct {
	Config     *common.Config
	Logger     *slog.Logger
	DB         *repository.DB
	Jobs       repository.ReceiptJobRepository
	Expenses   repository.ExpenseRepository
	Categories repository.CategoryRepository
	Store      *ingest.Store
	OCR        *ocr.Extractor
	Extract    *extract.Engine
	Processor  *core.Processor
	Exporter   *export.Service
}

// Build opens and migrates the database and assembles the pipeline.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db, logger); err != nil {
		repository.Close(db, logger)
		return nil, common.WrapError(err, "migrate")
	}

	ocrx, err := NewOCRExtractor(cfg.OCR, cfg.Storage.ArtifactDir, logger)
	if err != nil {
		repository.Close(db, logger)
		return nil, err
	}

	mapping, err := category.LoadMapping(cfg.Categories.MappingFile)
	if err != nil {
		repository.Close(db, logger)
		return nil, common.WrapError(err, "category mapping")
	}

	jobs := repository.NewReceiptJobRepository(db, logger)
	expenses := repository.NewExpenseRepository(db, logger)
	categories := repository.NewCategoryRepository(db, logger)
	resolver, err := category.NewResolver(categories, mapping, logger)
	if err != nil {
		repository.Close(db, logger)
		return nil, err
	}

	engine := NewExtractEngine(cfg.LLM, cfg.Extract, logger)
	store := ingest.NewStore(cfg.Storage.Root, logger)
	proc := core.NewProcessor(
		logger,
		ocrx,
		engine,
		expense.NewMaterializer(expenses, resolver, logger),
		jobs,
		store,
		cfg.Storage.MaxUploadBytes,
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Jobs:       jobs,
		Expenses:   expenses,
		Categories: categories,
		Store:      store,
		OCR:        ocrx,
		Extract:    engine,
		Processor:  proc,
		Exporter:   export.NewService(expenses, categories, logger),
	}, nil
}

func (a *App) Close() {
	repository.Close(a.DB, a.Logger)
}

// OpenDatabase maps the database section onto repository.Open.
func OpenDatabase(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		SQLitePath:       cfg.SQLitePath,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// NewOCRExtractor builds the extractor with the configured engine.
func NewOCRExtractor(cfg common.OCRConfig, artifactDir string, logger *slog.Logger) (*ocr.Extractor, error) {
	ocfg := ocr.Config{
		Pdftotext:         cfg.Pdftotext,
		Pdftoppm:          cfg.Pdftoppm,
		Tesseract:         cfg.Tesseract,
		Language:          cfg.Language,
		TessdataDir:       cfg.TessdataDir,
		DPI:               cfg.DPI,
		MaxPages:          cfg.MaxPages,
		MinTextLayerChars: cfg.MinTextLayerChars,
		Timeout:           cfg.Timeout,
		ArtifactDir:       artifactDir,
	}
	engine, err := ocr.NewEngine(cfg.Engine, ocfg, ocr.ExecRunner{}, logger)
	if err != nil {
		return nil, err
	}
	return ocr.NewExtractor(ocfg, logger, ocr.WithEngine(engine)), nil
}

// NewExtractEngine returns the field extractor. The collaborator is attached
// only when enabled; SelectStrategy still probes it per job.
func NewExtractEngine(cfg common.LLMConfig, tuning common.ExtractConfig, logger *slog.Logger) *extract.Engine {
	heuristic := extract.NewHeuristic(extract.NewVendorMatcher(nil, tuning.VendorLineThreshold, tuning.VendorWordThreshold))
	ecfg := extract.Config{
		HealthTimeout:  cfg.HealthTimeout,
		ExtractTimeout: cfg.ExtractTimeout,
		MaxPromptChars: cfg.MaxPromptChars,
	}
	if !cfg.Enabled {
		return extract.NewEngine(ecfg, heuristic, nil, logger)
	}
	client := llm.NewClient(llm.Config{
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		HealthTimeout:  cfg.HealthTimeout,
		ExtractTimeout: cfg.ExtractTimeout,
	}, logger)
	return extract.NewEngine(ecfg, heuristic, client, logger)
}

// NewQueue builds the configured queue backend in front of proc.
func NewQueue(cfg common.QueueConfig, proc async.PipelineProcessor, logger *slog.Logger) (async.Queue, error) {
	switch cfg.Backend {
	case "", "memory":
		return async.NewProcessorQueue(proc, logger,
			async.WithWorkers(cfg.Workers),
			async.WithQueueSize(cfg.Size),
			async.WithProcessTimeout(cfg.ProcessTimeout),
		), nil
	case "redis":
		return async.NewRedisQueue(async.RedisConfig{
			URL:            cfg.RedisURL,
			Workers:        cfg.Workers,
			ProcessTimeout: cfg.ProcessTimeout,
		}, proc, logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}
