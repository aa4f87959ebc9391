package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type runCall struct {
	name string
	args []string
}

// fakeRunner records invocations and answers from a canned function.
type fakeRunner struct {
	mu    sync.Mutex
	calls []runCall
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runCall{name: name, args: args})
	f.mu.Unlock()
	return f.fn(name, args)
}

// fakeEngine answers per image path and options.
type fakeEngine struct {
	mu    sync.Mutex
	calls []RecognizeOptions
	fn    func(path string, opts RecognizeOptions) (Recognition, error)
}

func (f *fakeEngine) Recognize(_ context.Context, path string, opts RecognizeOptions) (Recognition, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	return f.fn(path, opts)
}

// passthrough skips image processing.
type passthrough struct{}

func (passthrough) Process(_ context.Context, path string) (string, error) { return path, nil }

type staticTextLayer struct {
	name string
	text string
	err  error
}

func (s staticTextLayer) Name() string { return s.name }

func (s staticTextLayer) ExtractText(context.Context, string) (string, error) { return s.text, s.err }

// fakeRasterizer writes a placeholder file per page unless the page is listed
// in fail.
type fakeRasterizer struct {
	pages int
	fail  map[int]bool
}

func (f fakeRasterizer) PageCount(context.Context, string) (int, error) {
	if f.pages == 0 {
		return 0, errors.New("unknown")
	}
	return f.pages, nil
}

func (f fakeRasterizer) RenderPage(_ context.Context, _ string, page int, out string) error {
	if f.fail[page] {
		return errors.New("corrupt page")
	}
	return os.WriteFile(out, []byte("png"), 0o644)
}
