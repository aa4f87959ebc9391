package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/expense-tracker/internal/app"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/repository"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := app.OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open failed", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	if err := repository.HealthCheck(ctx, db, 2*time.Second, logger); err != nil {
		logger.Error("db health: FAIL", "error", err)
		os.Exit(1)
	}
	logger.Info("db health: OK", "dialect", db.Dialect())

	if err := repository.Migrate(ctx, db, logger); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	cats, err := repository.NewCategoryRepository(db, logger).List(ctx)
	if err != nil {
		logger.Error("listing categories", "error", err)
		os.Exit(1)
	}
	logger.Info("categories", "count", len(cats))
	for _, c := range cats {
		logger.Info("category", "id", c.ID, "name", c.Name, "type", c.Type)
	}
}
