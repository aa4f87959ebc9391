package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
)

// PageBreak separates page texts in a rasterized PDF.
const PageBreak = "\n\f\n"

// PDFResult is what ResolvePDF hands to extraction.
type PDFResult struct {
	Text                    string
	RepresentativeImagePath string
	TextNative              bool
	Pages                   int // pages that contributed text
	Confidence              float64
	Warnings                []string
}

// TextLayer pulls embedded text out of a PDF.
type TextLayer interface {
	Name() string
	ExtractText(ctx context.Context, path string) (string, error)
}

// Rasterizer renders single PDF pages to PNG.
type Rasterizer interface {
	PageCount(ctx context.Context, path string) (int, error)
	RenderPage(ctx context.Context, path string, page int, outPath string) error
}

// ResolvePDF returns embedded text when the PDF has a usable text layer.
// Otherwise it rasterizes up to MaxPages pages and OCRs each one; a page
// that fails to render or recognize is skipped.
func (e *Extractor) ResolvePDF(ctx context.Context, path string) (PDFResult, error) {
	logger := common.LoggerFromContext(ctx, e.logger)
	var warns []string

	best, source := "", ""
	for _, tl := range e.textLayers {
		txt, err := tl.ExtractText(ctx, path)
		if err != nil {
			logger.Debug("pdf.text_layer.failed", "source", tl.Name(), "error", err)
			warns = append(warns, fmt.Sprintf("%s: %v", tl.Name(), err))
			continue
		}
		txt = Normalize(txt)
		if utf8.RuneCountInString(txt) > utf8.RuneCountInString(best) {
			best, source = txt, tl.Name()
		}
	}
	if utf8.RuneCountInString(best) > e.cfg.MinTextLayerChars {
		logger.Info("pdf.text_layer.ok", "source", source, "chars", utf8.RuneCountInString(best))
		return PDFResult{
			Text:                    best,
			RepresentativeImagePath: path,
			TextNative:              true,
			Pages:                   1 + strings.Count(best, "\f"),
			Confidence:              1,
			Warnings:                warns,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return PDFResult{Warnings: warns}, err
	}
	total, err := e.rasterizer.PageCount(ctx, path)
	if err != nil || total <= 0 {
		logger.Debug("pdf.page_count.unknown", "error", err)
		total = e.cfg.MaxPages
	}
	limit := min(total, e.cfg.MaxPages)
	logger.Info("pdf.rasterize.start", "pages", total, "limit", limit)

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := os.MkdirAll(e.cfg.ArtifactDir, 0o755); err != nil {
		return PDFResult{Warnings: warns}, fmt.Errorf("create artifact dir: %w", err)
	}

	var (
		texts []string
		rep   string
		conf  float64
	)
	for page := 1; page <= limit; page++ {
		if err := ctx.Err(); err != nil {
			return PDFResult{Warnings: warns}, err
		}
		out := filepath.Join(e.cfg.ArtifactDir, fmt.Sprintf("%s-page-%d.png", base, page))
		if err := e.renderPage(ctx, path, page, out); err != nil {
			logger.Warn("pdf.page.render_failed", "page", page, "error", err)
			warns = append(warns, fmt.Sprintf("page %d: render: %v", page, err))
			continue
		}
		if rep == "" {
			rep = out
		}
		res, err := e.RecognizeImage(ctx, out)
		if err != nil {
			logger.Warn("pdf.page.ocr_failed", "page", page, "error", err)
			warns = append(warns, fmt.Sprintf("page %d: ocr: %v", page, err))
			continue
		}
		if strings.TrimSpace(res.Text) == "" {
			warns = append(warns, fmt.Sprintf("page %d: no text", page))
			continue
		}
		texts = append(texts, res.Text)
		conf += res.Confidence
	}

	if len(texts) == 0 {
		logger.Warn("pdf.no_text", "pages_tried", limit)
		return PDFResult{RepresentativeImagePath: rep, Warnings: warns},
			common.NewAppError("NO_TEXT", fmt.Sprintf("no page of %s yielded text", filepath.Base(path)), common.ErrNoExtractableText)
	}
	return PDFResult{
		Text:                    strings.Join(texts, PageBreak),
		RepresentativeImagePath: rep,
		Pages:                   len(texts),
		Confidence:              conf / float64(len(texts)),
		Warnings:                warns,
	}, nil
}

func (e *Extractor) renderPage(ctx context.Context, path string, page int, out string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.rasterizer.RenderPage(ctx, path, page, out); err != nil {
		return err
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		return fmt.Errorf("page %d produced no image", page)
	}
	return nil
}

// EmbeddedTextLayer reads the text layer in-process.
type EmbeddedTextLayer struct{}

func (EmbeddedTextLayer) Name() string { return "embedded" }

func (EmbeddedTextLayer) ExtractText(ctx context.Context, path string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer func() {
		// the parser panics on some malformed xref tables
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parse panic: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plain text: %w", err)
	}
	b, err := io.ReadAll(rd)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(b), nil
}

// PdftotextLayer runs poppler's pdftotext.
type PdftotextLayer struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewPdftotextLayer(bin string, runner Runner, logger *slog.Logger) *PdftotextLayer {
	if bin == "" {
		bin = "pdftotext"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PdftotextLayer{bin: bin, runner: runner, logger: logger}
}

func (p *PdftotextLayer) Name() string { return "pdftotext" }

func (p *PdftotextLayer) ExtractText(ctx context.Context, path string) (string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := p.runner.Run(ctx, p.bin, p.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return string(out), nil
}

// PopplerRasterizer renders pages with pdftoppm and counts them in-process.
type PopplerRasterizer struct {
	bin    string
	dpi    int
	runner Runner
	logger *slog.Logger
}

func NewPopplerRasterizer(bin string, dpi int, runner Runner, logger *slog.Logger) *PopplerRasterizer {
	if bin == "" {
		bin = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 200
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PopplerRasterizer{bin: bin, dpi: dpi, runner: runner, logger: logger}
}

func (p *PopplerRasterizer) PageCount(_ context.Context, path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdf parse panic: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}

func (p *PopplerRasterizer) RenderPage(ctx context.Context, path string, page int, outPath string) error {
	// pdftoppm -r <dpi> -f N -l N -png -singlefile <in.pdf> <out-prefix>
	prefix := strings.TrimSuffix(outPath, filepath.Ext(outPath))
	n := strconv.Itoa(page)
	_, errb, err := p.runner.Run(ctx, p.bin, p.logger,
		"-r", strconv.Itoa(p.dpi), "-f", n, "-l", n, "-png", "-singlefile", path, prefix)
	if err != nil {
		return fmt.Errorf("pdftoppm page %d: %w: %s", page, err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return nil
}
