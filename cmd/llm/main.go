package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/expense-tracker/internal/app"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
	"github.com/joseph-ayodele/expense-tracker/internal/core/validate"
)

func main() {
	textFile := flag.String("text", "", "file holding OCR text to extract from (health check only when empty)")
	flag.Parse()

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	// this tool exists to exercise the collaborator
	cfg.LLM.Enabled = true

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	engine := app.NewExtractEngine(cfg.LLM, cfg.Extract, logger)
	strategy := engine.SelectStrategy(ctx)
	logger.Info("llm health", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model, "strategy", strategy)
	if *textFile == "" {
		return
	}

	raw, err := os.ReadFile(*textFile)
	if err != nil {
		logger.Error("read text", "path", *textFile, "error", err)
		os.Exit(1)
	}
	fields, outcome := engine.Extract(ctx, string(raw), strategy)
	fields = validate.Normalize(fields)

	out := map[string]any{
		"strategy": outcome.Label(),
		"fields":   fields,
	}
	if outcome.Reason != "" {
		out["fallback_reason"] = outcome.Reason
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
