package ocr

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/expense-tracker/internal/common"
)

const receiptText = "ACME HARDWARE\n02/03/2024\nHAMMER 12.99\nNAILS 3.49\nTOTAL: $16.48"

func newPDFExtractor(t *testing.T, layers []TextLayer, r Rasterizer, eng Engine) *Extractor {
	t.Helper()
	return NewExtractor(Config{ArtifactDir: t.TempDir(), MaxPages: 5}, discardLogger(),
		WithTextLayers(layers...),
		WithRasterizer(r),
		WithEngine(eng),
		WithPreprocessor(passthrough{}),
	)
}

func TestResolvePDFTextNative(t *testing.T) {
	long := strings.Repeat("INVOICE LINE 10.00\n", 5)
	eng := &fakeEngine{fn: func(string, RecognizeOptions) (Recognition, error) {
		t.Fatal("OCR must not run for a text-native PDF")
		return Recognition{}, nil
	}}
	e := newPDFExtractor(t,
		[]TextLayer{staticTextLayer{name: "embedded", text: "short"}, staticTextLayer{name: "pdftotext", text: long}},
		fakeRasterizer{pages: 1}, eng)

	res, err := e.ResolvePDF(context.Background(), "/in/doc.pdf")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.TextNative || res.RepresentativeImagePath != "/in/doc.pdf" {
		t.Fatalf("res = %+v", res)
	}
	if !strings.HasPrefix(res.Text, "INVOICE LINE 10.00") {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestResolvePDFSkipsUnreadableFirstPage(t *testing.T) {
	eng := &fakeEngine{fn: func(path string, _ RecognizeOptions) (Recognition, error) {
		if strings.HasSuffix(path, "-page-1.png") {
			return Recognition{}, errors.New("engine crashed")
		}
		return Recognition{Text: receiptText, Confidence: 0.9}, nil
	}}
	e := newPDFExtractor(t, []TextLayer{staticTextLayer{name: "embedded", text: ""}}, fakeRasterizer{pages: 2}, eng)

	res, err := e.ResolvePDF(context.Background(), "/in/scan.pdf")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.TextNative {
		t.Fatal("scan-only PDF reported as text-native")
	}
	if res.Text != receiptText || res.Pages != 1 {
		t.Fatalf("text = %q pages = %d, want page-2 text only", res.Text, res.Pages)
	}
	if filepath.Base(res.RepresentativeImagePath) != "scan-page-1.png" {
		t.Fatalf("representative = %q, want first rendered page", res.RepresentativeImagePath)
	}
}

func TestResolvePDFSkipsPageThatFailsToRender(t *testing.T) {
	eng := &fakeEngine{fn: func(path string, _ RecognizeOptions) (Recognition, error) {
		return Recognition{Text: "page " + filepath.Base(path) + "\n" + receiptText}, nil
	}}
	e := newPDFExtractor(t, nil, fakeRasterizer{pages: 3, fail: map[int]bool{1: true}}, eng)

	res, err := e.ResolvePDF(context.Background(), "/in/scan.pdf")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Base(res.RepresentativeImagePath) != "scan-page-2.png" {
		t.Fatalf("representative = %q", res.RepresentativeImagePath)
	}
	parts := strings.Split(res.Text, PageBreak)
	if len(parts) != 2 || !strings.Contains(parts[0], "scan-page-2.png") || !strings.Contains(parts[1], "scan-page-3.png") {
		t.Fatalf("text parts = %q", parts)
	}
}

func TestResolvePDFCapsPages(t *testing.T) {
	eng := &fakeEngine{fn: func(string, RecognizeOptions) (Recognition, error) {
		return Recognition{Text: receiptText}, nil
	}}
	e := newPDFExtractor(t, nil, fakeRasterizer{pages: 40}, eng)
	res, err := e.ResolvePDF(context.Background(), "/in/long.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages != 5 {
		t.Fatalf("pages = %d, want 5", res.Pages)
	}
}

func TestResolvePDFNoTextFails(t *testing.T) {
	eng := &fakeEngine{fn: func(string, RecognizeOptions) (Recognition, error) {
		return Recognition{}, errors.New("blank")
	}}
	e := newPDFExtractor(t, []TextLayer{staticTextLayer{name: "embedded", err: errors.New("no xref")}}, fakeRasterizer{}, eng)

	_, err := e.ResolvePDF(context.Background(), "/in/blank.pdf")
	if !errors.Is(err, common.ErrNoExtractableText) {
		t.Fatalf("err = %v, want ErrNoExtractableText", err)
	}
}

func TestPopplerRasterizerArgs(t *testing.T) {
	runner := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) { return nil, nil, nil }}
	r := NewPopplerRasterizer("", 200, runner, discardLogger())
	if err := r.RenderPage(context.Background(), "/in/a.pdf", 3, "/out/a-page-3.png"); err != nil {
		t.Fatal(err)
	}
	got := strings.Join(runner.calls[0].args, " ")
	want := "-r 200 -f 3 -l 3 -png -singlefile /in/a.pdf /out/a-page-3"
	if runner.calls[0].name != "pdftoppm" || got != want {
		t.Fatalf("call = %s %s, want pdftoppm %s", runner.calls[0].name, got, want)
	}
}
