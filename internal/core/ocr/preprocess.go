package ocr

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// Tuning for the advanced pipeline.
const (
	upscaleFloorWidth  = 1800
	clipLowPercentile  = 0.05
	clipHighPercentile = 0.95
	desaturatePercent  = -40
	contrastPercent    = 25
	sharpenSigma       = 1.2
	binarizeThreshold  = 128
)

// ImagePreprocessor prepares an image for OCR and returns the artifact path.
type ImagePreprocessor interface {
	Process(ctx context.Context, path string) (string, error)
}

// Preprocessor writes a grayscale, binarized PNG next to the other OCR
// artifacts. When the full pipeline fails it falls back to a shorter one.
type Preprocessor struct {
	artifactDir string
	logger      *slog.Logger
}

func NewPreprocessor(artifactDir string, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	if artifactDir == "" {
		artifactDir = os.TempDir()
	}
	return &Preprocessor{artifactDir: artifactDir, logger: logger}
}

// Process returns the path of the processed PNG. An error means neither
// pipeline produced an artifact; callers then OCR the source as-is.
func (p *Preprocessor) Process(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	if err := os.MkdirAll(p.artifactDir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(p.artifactDir, base+"-processed.png")

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		p.logger.Warn("preprocess.decode.failed", "path", path, "error", err)
		return "", fmt.Errorf("decode image: %w", err)
	}

	img, err := safeRun(func() *image.NRGBA { return advancedPipeline(src) })
	mode := "advanced"
	if err != nil {
		p.logger.Warn("preprocess.advanced.failed", "path", path, "error", err)
		img, err = safeRun(func() *image.NRGBA { return simplePipeline(src) })
		mode = "simple"
		if err != nil {
			p.logger.Error("preprocess.simple.failed", "path", path, "error", err)
			return "", err
		}
	}

	if err := imaging.Save(img, out); err != nil {
		p.logger.Error("preprocess.save.failed", "out", out, "error", err)
		return "", fmt.Errorf("save processed image: %w", err)
	}
	p.logger.Debug("preprocess.ok",
		"mode", mode,
		"in", path,
		"out", out,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// safeRun converts a panic inside an imaging stage into an error.
func safeRun(fn func() *image.NRGBA) (img *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preprocess panic: %v", r)
		}
	}()
	img = fn()
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("preprocess produced an empty image")
	}
	return img, nil
}

func advancedPipeline(src image.Image) *image.NRGBA {
	img := upscale(src)
	img = median3x3(img)
	img = imaging.AdjustSaturation(img, desaturatePercent)
	img = stretchHistogram(img, clipLowPercentile, clipHighPercentile)
	img = imaging.AdjustContrast(img, contrastPercent)
	img = imaging.Grayscale(img)
	img = imaging.Sharpen(img, sharpenSigma)
	return binarize(img, binarizeThreshold)
}

func simplePipeline(src image.Image) *image.NRGBA {
	img := upscale(src)
	img = imaging.Grayscale(img)
	img = stretchHistogram(img, 0, 1)
	img = imaging.Sharpen(img, sharpenSigma)
	return binarize(img, binarizeThreshold)
}

// upscale doubles narrow images, capped at the floor width. Wider images are
// left alone.
func upscale(src image.Image) *image.NRGBA {
	w := src.Bounds().Dx()
	if w >= upscaleFloorWidth {
		return imaging.Clone(src)
	}
	target := min(2*w, upscaleFloorWidth)
	return imaging.Resize(src, target, 0, imaging.Lanczos)
}

// stretchHistogram maps the lo..hi luminance percentiles onto 0..255.
func stretchHistogram(img *image.NRGBA, lo, hi float64) *image.NRGBA {
	hist := imaging.Histogram(img)
	low, high := percentile(hist, lo), percentile(hist, hi)
	if high <= low {
		return img
	}
	scale := 255.0 / float64(high-low)
	stretch := func(v uint8) uint8 {
		x := (float64(v) - float64(low)) * scale
		switch {
		case x < 0:
			return 0
		case x > 255:
			return 255
		}
		return uint8(x + 0.5)
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}

// percentile returns the first bin whose cumulative share reaches p.
func percentile(hist [256]float64, p float64) int {
	if p <= 0 {
		for i, v := range hist {
			if v > 0 {
				return i
			}
		}
		return 0
	}
	var cum float64
	for i, v := range hist {
		cum += v
		if cum >= p {
			return i
		}
	}
	return 255
}

func binarize(img *image.NRGBA, threshold uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := uint8(0)
		if c.R >= threshold {
			v = 255
		}
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	})
}

// median3x3 replaces each channel value with the median of its 3x3
// neighbourhood. Edges repeat the border pixel.
func median3x3(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	var win [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			di := y*dst.Stride + x*4
			for ch := 0; ch < 3; ch++ {
				k := 0
				for dy := -1; dy <= 1; dy++ {
					sy := clamp(y+dy, h-1)
					for dx := -1; dx <= 1; dx++ {
						sx := clamp(x+dx, w-1)
						win[k] = src.Pix[sy*src.Stride+sx*4+ch]
						k++
					}
				}
				dst.Pix[di+ch] = median9(&win)
			}
			dst.Pix[di+3] = src.Pix[y*src.Stride+x*4+3]
		}
	}
	return dst
}

func median9(v *[9]uint8) uint8 {
	// insertion sort; nine elements
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
	return v[4]
}
