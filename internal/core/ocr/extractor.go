package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/expense-tracker/constants"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
)

// Extraction methods reported in Result.Method.
const (
	MethodPDFText  = "pdf-text"
	MethodPDFOCR   = "pdf-ocr"
	MethodImageOCR = "image-ocr"
)

// Result is the text produced for one receipt file.
type Result struct {
	Text               string
	Confidence         float64
	SourceType         string // constants.PDF | constants.IMAGE
	Method             string
	ProcessedImagePath string
	Pages              int
	Quality            QualityReport
	Duration           time.Duration
	Warnings           []string
}

// Extractor turns a receipt file into raw text.
type Extractor struct {
	cfg        Config
	engine     Engine
	pre        ImagePreprocessor
	textLayers []TextLayer
	rasterizer Rasterizer
	logger     *slog.Logger
}

type Option func(*Extractor)

func WithEngine(e Engine) Option { return func(x *Extractor) { x.engine = e } }

func WithPreprocessor(p ImagePreprocessor) Option { return func(x *Extractor) { x.pre = p } }

func WithTextLayers(layers ...TextLayer) Option {
	return func(x *Extractor) { x.textLayers = layers }
}

func WithRasterizer(r Rasterizer) Option { return func(x *Extractor) { x.rasterizer = r } }

// NewExtractor wires the CLI-backed defaults; options replace any piece.
func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	runner := ExecRunner{}
	e := &Extractor{
		cfg:    cfg,
		engine: NewTesseractCLI(cfg, runner, logger),
		pre:    NewPreprocessor(cfg.ArtifactDir, logger),
		textLayers: []TextLayer{
			EmbeddedTextLayer{},
			NewPdftotextLayer(cfg.Pdftotext, runner, logger),
		},
		rasterizer: NewPopplerRasterizer(cfg.Pdftoppm, cfg.DPI, runner, logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract picks the image or PDF path based on the file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, e.logger)
	ext := constants.NormalizeExt(filepath.Ext(path))
	logger.Debug("ocr.extract.start", "path", path, "ext", ext)

	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		pr, err := e.ResolvePDF(ctx, path)
		res := Result{
			Text:               pr.Text,
			Confidence:         pr.Confidence,
			SourceType:         constants.PDF,
			Method:             MethodPDFOCR,
			ProcessedImagePath: pr.RepresentativeImagePath,
			Pages:              pr.Pages,
			Warnings:           pr.Warnings,
			Duration:           time.Since(start),
		}
		if pr.TextNative {
			res.Method = MethodPDFText
		}
		if err == nil {
			res.Quality = ScoreText(res.Text)
		}
		return res, err
	case constants.IMAGE:
		res, err := e.RecognizeImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	default:
		logger.Error("unsupported ocr extension", "extension", ext)
		return Result{}, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("extension %q", ext), common.ErrUnsupportedFile)
	}
}

// RecognizeImage preprocesses and OCRs one image. Engine failure is retried
// once with minimal settings. A quality score below RetryScore triggers one
// sparse-text pass and the better-scoring text wins.
func (e *Extractor) RecognizeImage(ctx context.Context, path string) (Result, error) {
	logger := common.LoggerFromContext(ctx, e.logger)
	res := Result{SourceType: constants.IMAGE, Method: MethodImageOCR, Pages: 1}

	processed, err := e.pre.Process(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		logger.Warn("ocr.preprocess.skipped", "path", path, "error", err)
		res.Warnings = append(res.Warnings, "preprocess: "+err.Error())
		processed = path
	}
	res.ProcessedImagePath = processed

	rec, err := e.recognize(ctx, processed, RecognizeOptions{PSM: PSMSingleBlock, Whitelist: ReceiptWhitelist})
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		logger.Warn("ocr.engine.retry_minimal", "path", processed, "error", err)
		res.Warnings = append(res.Warnings, "engine: "+err.Error())
		rec, err = e.recognize(ctx, processed, RecognizeOptions{Minimal: true})
		if err != nil {
			logger.Error("ocr.engine.failed", "path", processed, "error", err)
			return res, fmt.Errorf("ocr %s: %w", filepath.Base(path), err)
		}
	}
	text := Normalize(rec.Text)
	report := ScoreText(text)

	if report.Score < RetryScore {
		logger.Info("ocr.quality.retry", "score", report.Score, "issues", report.Issues)
		alt, err := e.recognize(ctx, processed, RecognizeOptions{PSM: PSMSparseText, Whitelist: ReceiptWhitelist})
		if err != nil {
			logger.Warn("ocr.quality.retry_failed", "error", err)
			res.Warnings = append(res.Warnings, "sparse retry: "+err.Error())
		} else {
			altText := Normalize(alt.Text)
			altReport := ScoreText(altText)
			logger.Debug("ocr.quality.compare", "first", report.Score, "sparse", altReport.Score)
			if altReport.Score > report.Score {
				rec, text, report = alt, altText, altReport
			}
		}
	}

	res.Text = text
	res.Confidence = rec.Confidence
	res.Quality = report
	logger.Info("ocr.image.ok", "chars", len(text), "score", report.Score, "confidence", rec.Confidence)
	return res, nil
}

func (e *Extractor) recognize(ctx context.Context, path string, opts RecognizeOptions) (Recognition, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.engine.Recognize(ctx, path, opts)
}

func (e *Extractor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}
