package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/expense-tracker/constants"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
)

func newImageExtractor(t *testing.T, eng Engine) *Extractor {
	t.Helper()
	return NewExtractor(Config{ArtifactDir: t.TempDir()}, discardLogger(),
		WithEngine(eng),
		WithPreprocessor(passthrough{}),
	)
}

func TestRecognizeImageRetriesMinimalOnEngineFailure(t *testing.T) {
	eng := &fakeEngine{fn: func(_ string, opts RecognizeOptions) (Recognition, error) {
		if !opts.Minimal {
			return Recognition{}, errors.New("bad whitelist")
		}
		return Recognition{Text: receiptText, Confidence: 0.7}, nil
	}}
	res, err := newImageExtractor(t, eng).RecognizeImage(context.Background(), "/img/r.png")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if res.Text != receiptText {
		t.Fatalf("text = %q", res.Text)
	}
	if len(eng.calls) != 2 {
		t.Fatalf("engine calls = %d, want 2", len(eng.calls))
	}
}

func TestRecognizeImageFailsAfterSecondEngineError(t *testing.T) {
	eng := &fakeEngine{fn: func(string, RecognizeOptions) (Recognition, error) {
		return Recognition{}, errors.New("segfault")
	}}
	if _, err := newImageExtractor(t, eng).RecognizeImage(context.Background(), "/img/r.png"); err == nil {
		t.Fatal("expected error")
	}
	if len(eng.calls) != 2 {
		t.Fatalf("engine calls = %d, want 2", len(eng.calls))
	}
}

func TestRecognizeImageQualityRetryKeepsBetter(t *testing.T) {
	tests := []struct {
		name     string
		sparse   string
		wantText string
	}{
		{name: "sparse better", sparse: receiptText, wantText: receiptText},
		{name: "sparse worse", sparse: "§§§", wantText: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{fn: func(_ string, opts RecognizeOptions) (Recognition, error) {
				if opts.PSM == PSMSparseText {
					return Recognition{Text: tt.sparse}, nil
				}
				return Recognition{Text: ""}, nil
			}}
			res, err := newImageExtractor(t, eng).RecognizeImage(context.Background(), "/img/r.png")
			if err != nil {
				t.Fatal(err)
			}
			if res.Text != tt.wantText {
				t.Fatalf("text = %q, want %q", res.Text, tt.wantText)
			}
			if len(eng.calls) != 2 {
				t.Fatalf("engine calls = %d, want exactly one retry", len(eng.calls))
			}
		})
	}
}

func TestRecognizeImageNoRetryWhenGood(t *testing.T) {
	eng := &fakeEngine{fn: func(string, RecognizeOptions) (Recognition, error) {
		return Recognition{Text: receiptText, Confidence: 0.95}, nil
	}}
	res, err := newImageExtractor(t, eng).RecognizeImage(context.Background(), "/img/r.png")
	if err != nil {
		t.Fatal(err)
	}
	if len(eng.calls) != 1 || eng.calls[0].PSM != PSMSingleBlock || eng.calls[0].Whitelist != ReceiptWhitelist {
		t.Fatalf("calls = %+v", eng.calls)
	}
	if res.Quality.Score < RetryScore || res.Confidence != 0.95 {
		t.Fatalf("res = %+v", res)
	}
}

func TestExtractDispatch(t *testing.T) {
	eng := &fakeEngine{fn: func(string, RecognizeOptions) (Recognition, error) {
		return Recognition{Text: receiptText}, nil
	}}
	e := newImageExtractor(t, eng)

	res, err := e.Extract(context.Background(), "/img/r.JPG")
	if err != nil {
		t.Fatal(err)
	}
	if res.SourceType != constants.IMAGE || res.Method != MethodImageOCR {
		t.Fatalf("res = %+v", res)
	}

	if _, err := e.Extract(context.Background(), "/img/r.tiff"); !errors.Is(err, common.ErrUnsupportedFile) {
		t.Fatalf("tiff: err = %v", err)
	}
}

func TestRecognizeImageHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &fakeEngine{fn: func(string, RecognizeOptions) (Recognition, error) {
		return Recognition{}, context.Canceled
	}}
	_, err := newImageExtractor(t, eng).RecognizeImage(ctx, "/img/r.png")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
