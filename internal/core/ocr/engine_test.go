package ocr

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tWALMART\n" +
	"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t80\tSUPERCENTER\n" +
	"5\t1\t1\t1\t2\t1\t0\t0\t10\t10\t70\t01/15/2024\n" +
	"5\t1\t2\t1\t1\t1\t0\t0\t10\t10\t60\tTOTAL:\n" +
	"5\t1\t2\t1\t1\t2\t0\t0\t10\t10\t100\t$5.75\n" +
	"5\t1\t2\t1\t1\t3\t0\t0\t10\t10\t-1\t \n"

func TestParseTSV(t *testing.T) {
	text, conf := parseTSV(sampleTSV)
	want := "WALMART SUPERCENTER\n01/15/2024\n\nTOTAL: $5.75"
	if text != want {
		t.Fatalf("text = %q, want %q", text, want)
	}
	if math.Abs(conf-0.8) > 1e-9 {
		t.Fatalf("conf = %v, want 0.8", conf)
	}
}

func TestTesseractCLIArgs(t *testing.T) {
	runner := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return []byte(sampleTSV), nil, nil
	}}
	eng := NewTesseractCLI(Config{Tesseract: "/usr/bin/tesseract", TessdataDir: "/td"}, runner, discardLogger())

	if _, err := eng.Recognize(context.Background(), "/img.png", RecognizeOptions{PSM: PSMSparseText, Whitelist: "0123"}); err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if _, err := eng.Recognize(context.Background(), "/img.png", RecognizeOptions{PSM: PSMSparseText, Minimal: true}); err != nil {
		t.Fatalf("recognize minimal: %v", err)
	}

	full := runner.calls[0]
	if full.name != "/usr/bin/tesseract" {
		t.Fatalf("bin = %q", full.name)
	}
	wantFull := []string{"/img.png", "stdout", "-l", "eng", "--tessdata-dir", "/td", "--psm", "11", "-c", "tessedit_char_whitelist=0123", "tsv"}
	if !slices.Equal(full.args, wantFull) {
		t.Fatalf("args = %v, want %v", full.args, wantFull)
	}
	wantMin := []string{"/img.png", "stdout", "-l", "eng", "--tessdata-dir", "/td", "tsv"}
	if !slices.Equal(runner.calls[1].args, wantMin) {
		t.Fatalf("minimal args = %v, want %v", runner.calls[1].args, wantMin)
	}
}

func TestTesseractCLIError(t *testing.T) {
	runner := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file"), errors.New("exit status 1")
	}}
	eng := NewTesseractCLI(Config{}, runner, discardLogger())
	if _, err := eng.Recognize(context.Background(), "/img.png", RecognizeOptions{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewEngine(t *testing.T) {
	if _, err := NewEngine("", Config{}, nil, nil); err != nil {
		t.Fatalf("default engine: %v", err)
	}
	if _, err := NewEngine("bogus", Config{}, nil, nil); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}
