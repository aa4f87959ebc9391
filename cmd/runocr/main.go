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
	"github.com/joseph-ayodele/expense-tracker/internal/core/ocr"
)

func main() {
	showText := flag.Bool("text", true, "print the recognized text")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: runocr [-text=false] <receipt.png|jpg|pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	extractor, err := app.NewOCRExtractor(cfg.OCR, cfg.Storage.ArtifactDir, logger)
	if err != nil {
		logger.Error("ocr setup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := extractor.Extract(ctx, path)
	if err != nil {
		logger.Error("ocr failed", "path", path, "error", err)
		os.Exit(1)
	}

	report := struct {
		Path       string            `json:"path"`
		SourceType string            `json:"source_type"`
		Method     string            `json:"method"`
		Pages      int               `json:"pages"`
		Confidence float64           `json:"confidence"`
		Quality    ocr.QualityReport `json:"quality"`
		Processed  string            `json:"processed_image_path,omitempty"`
		Warnings   []string          `json:"warnings,omitempty"`
		DurationMS int64             `json:"duration_ms"`
		Text       string            `json:"text,omitempty"`
	}{
		Path:       path,
		SourceType: res.SourceType,
		Method:     res.Method,
		Pages:      res.Pages,
		Confidence: res.Confidence,
		Quality:    res.Quality,
		Processed:  res.ProcessedImagePath,
		Warnings:   res.Warnings,
		DurationMS: res.Duration.Milliseconds(),
	}
	if *showText {
		report.Text = res.Text
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("write report", "error", err)
		os.Exit(1)
	}
}
