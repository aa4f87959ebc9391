package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joseph-ayodele/expense-tracker/internal/app"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory to process receipts from (required)")
		exportPath = flag.String("export", "", "write an XLSX of the resulting expenses to this path")
		from       = flag.String("from", "", "export from date YYYY-MM-DD")
		to         = flag.String("to", "", "export to date YYYY-MM-DD")
		hidden     = flag.Bool("hidden", false, "include hidden files and directories")
	)
	flag.Parse()
	if *dir == "" {
		printError("Error: -dir is required\n")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	paths, stats, err := ingest.ScanDirectory(*dir, !*hidden)
	if err != nil {
		logger.Error("scan failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("scan complete", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	var completed, failed, skipped int
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		res, err := a.Processor.ProcessReceipt(ctx, p)
		switch {
		case err != nil:
			failed++
			logger.Warn("receipt failed", "path", p, "error", err)
		case res.Skipped:
			completed++
			skipped++
			logger.Info("receipt processed, no expense", "path", p, "job_id", res.Job.ID, "reason", res.SkipReason)
		default:
			completed++
			logger.Info("receipt processed",
				"path", p,
				"job_id", res.Job.ID,
				"strategy", res.Strategy,
				"vendor", res.Expense.Vendor,
				"amount", res.Expense.Amount,
				"date", res.Expense.Date,
			)
		}
	}
	logger.Info("batch complete", "files", len(paths), "completed", completed, "failed", failed, "no_expense", skipped)

	if *exportPath == "" {
		return
	}
	data, err := a.Exporter.ExportExpensesXLSX(ctx, *from, *to)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*exportPath), 0o755); err != nil {
		logger.Error("export dir", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*exportPath, data, 0o644); err != nil {
		logger.Error("write export", "path", *exportPath, "error", err)
		os.Exit(1)
	}
	logger.Info("export written", "path", *exportPath, "bytes", len(data))
}
