//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract runs tesseract in-process through libtesseract. Build with
// -tags gosseract to enable it.
type Gosseract struct {
	lang        string
	tessdataDir string
	logger      *slog.Logger
}

func newGosseract(cfg Config, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Gosseract{lang: cfg.Language, tessdataDir: cfg.TessdataDir, logger: logger}, nil
}

func (g *Gosseract) Recognize(ctx context.Context, imagePath string, opts RecognizeOptions) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}
	client := gosseract.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			g.logger.Warn("gosseract close failed", "error", err)
		}
	}()

	if g.tessdataDir != "" {
		if err := client.SetTessdataPrefix(g.tessdataDir); err != nil {
			return Recognition{}, fmt.Errorf("gosseract tessdata: %w", err)
		}
	}
	if err := client.SetLanguage(g.lang); err != nil {
		return Recognition{}, fmt.Errorf("gosseract language: %w", err)
	}
	if !opts.Minimal {
		psm := gosseract.PSM_SINGLE_BLOCK
		if opts.PSM == PSMSparseText {
			psm = gosseract.PSM_SPARSE_TEXT
		}
		if err := client.SetPageSegMode(psm); err != nil {
			return Recognition{}, fmt.Errorf("gosseract psm: %w", err)
		}
		if opts.Whitelist != "" {
			if err := client.SetWhitelist(opts.Whitelist); err != nil {
				return Recognition{}, fmt.Errorf("gosseract whitelist: %w", err)
			}
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return Recognition{}, fmt.Errorf("gosseract image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return Recognition{}, fmt.Errorf("gosseract text: %w", err)
	}

	var conf float64
	if boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD); err != nil {
		g.logger.Warn("gosseract word confidences unavailable", "error", err)
	} else if len(boxes) > 0 {
		var sum float64
		for _, b := range boxes {
			sum += b.Confidence
		}
		conf = sum / float64(len(boxes)) / 100.0
	}
	return Recognition{Text: text, Confidence: conf}, nil
}
