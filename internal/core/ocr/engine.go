package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// PageSegMode mirrors tesseract's --psm values we use.
type PageSegMode int

const (
	PSMSingleBlock PageSegMode = 6
	PSMSparseText  PageSegMode = 11
)

// ReceiptWhitelist limits recognition to characters that appear on receipts.
const ReceiptWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789$£€.,:;/-#&@%()'*+!?"

// Engine names accepted by NewEngine.
const (
	EngineTesseractCLI = "tesseract-cli"
	EngineGosseract    = "gosseract"
)

// RecognizeOptions configures one recognition pass. Minimal drops the
// segmentation mode and whitelist and lets the engine use its defaults.
type RecognizeOptions struct {
	PSM       PageSegMode
	Whitelist string
	Minimal   bool
}

// Recognition is raw engine output. Confidence is in [0,1].
type Recognition struct {
	Text       string
	Confidence float64
}

// Engine turns an image into text.
type Engine interface {
	Recognize(ctx context.Context, imagePath string, opts RecognizeOptions) (Recognition, error)
}

// NewEngine builds the engine named in configuration.
func NewEngine(name string, cfg Config, runner Runner, logger *slog.Logger) (Engine, error) {
	switch name {
	case "", EngineTesseractCLI:
		return NewTesseractCLI(cfg, runner, logger), nil
	case EngineGosseract:
		return newGosseract(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", name)
	}
}

// TesseractCLI shells out to the tesseract binary and reads its TSV output,
// which carries both the words and their confidences in one run.
type TesseractCLI struct {
	bin         string
	lang        string
	tessdataDir string
	runner      Runner
	logger      *slog.Logger
}

func NewTesseractCLI(cfg Config, runner Runner, logger *slog.Logger) *TesseractCLI {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	cfg = cfg.withDefaults()
	return &TesseractCLI{
		bin:         cfg.Tesseract,
		lang:        cfg.Language,
		tessdataDir: cfg.TessdataDir,
		runner:      runner,
		logger:      logger,
	}
}

func (t *TesseractCLI) Recognize(ctx context.Context, imagePath string, opts RecognizeOptions) (Recognition, error) {
	// tesseract <file> stdout -l <lang> [--psm N] [-c whitelist] tsv
	args := []string{imagePath, "stdout", "-l", t.lang}
	if t.tessdataDir != "" {
		args = append(args, "--tessdata-dir", t.tessdataDir)
	}
	if !opts.Minimal {
		if opts.PSM > 0 {
			args = append(args, "--psm", strconv.Itoa(int(opts.PSM)))
		}
		if opts.Whitelist != "" {
			args = append(args, "-c", "tessedit_char_whitelist="+opts.Whitelist)
		}
	}
	args = append(args, "tsv")

	out, errb, err := t.runner.Run(ctx, t.bin, t.logger, args...)
	if err != nil {
		return Recognition{}, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	text, conf := parseTSV(string(out))
	return Recognition{Text: text, Confidence: conf}, nil
}

// parseTSV rebuilds text from tesseract TSV word rows and returns the mean
// word confidence in 0..1. Columns: level page block par line word left top
// width height conf text.
func parseTSV(tsv string) (string, float64) {
	var (
		b        strings.Builder
		lastLine string
		lastBlk  string
		sum, n   float64
	)
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		word := strings.TrimSpace(strings.Join(cols[11:], " "))
		if word == "" {
			continue
		}
		blk := cols[1] + "." + cols[2] + "." + cols[3]
		line := blk + "." + cols[4]
		switch {
		case b.Len() == 0:
		case line != lastLine && blk != lastBlk:
			b.WriteString("\n\n")
		case line != lastLine:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(word)
		lastLine, lastBlk = line, blk

		if v, err := strconv.ParseFloat(cols[10], 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return b.String(), 0
	}
	return b.String(), sum / n / 100.0
}
