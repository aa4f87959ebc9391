package ocr

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writeTestImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// washed-out background with darker vertical strokes and some speckle
			c := color.NRGBA{R: 200, G: 190, B: 170, A: 255}
			if x%10 < 3 {
				c = color.NRGBA{R: 90, G: 80, B: 70, A: 255}
			}
			if (x*7+y*13)%97 == 0 {
				c = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
	return path
}

func TestPreprocessorProducesBinaryUpscaledPNG(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "receipt.jpg", 120, 60)
	p := NewPreprocessor(filepath.Join(dir, "artifacts"), discardLogger())

	out, err := p.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if filepath.Base(out) != "receipt-processed.png" {
		t.Fatalf("out = %q", out)
	}
	img, err := imaging.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	if got := img.Bounds().Dx(); got != 240 {
		t.Fatalf("width = %d, want 240", got)
	}
	if got := img.Bounds().Dy(); got != 120 {
		t.Fatalf("height = %d, want 120 (aspect preserved)", got)
	}
	n := imaging.Clone(img)
	for i := 0; i < len(n.Pix); i += 4 {
		if v := n.Pix[i]; v != 0 && v != 255 {
			t.Fatalf("pixel %d = %d, want pure black or white", i/4, v)
		}
	}
}

func TestUpscaleBounds(t *testing.T) {
	tests := []struct{ in, want int }{
		{in: 100, want: 200},
		{in: 1000, want: 1800},
		{in: 1800, want: 1800},
		{in: 2400, want: 2400},
	}
	for _, tt := range tests {
		img := image.NewNRGBA(image.Rect(0, 0, tt.in, 4))
		if got := upscale(img).Bounds().Dx(); got != tt.want {
			t.Errorf("upscale(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMedianRemovesSpeckle(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetNRGBA(2, 2, color.NRGBA{A: 255})
	out := median3x3(img)
	if c := out.NRGBAAt(2, 2); c.R != 255 {
		t.Fatalf("speckle survived: %+v", c)
	}
}

func TestPreprocessorRejectsUndecodable(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPreprocessor(dir, discardLogger()).Process(context.Background(), bad); err == nil {
		t.Fatal("expected decode error")
	}
}
