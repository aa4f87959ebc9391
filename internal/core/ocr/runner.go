package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs the OCR binaries. A cancelled context is reported as
// ctx.Err() rather than the kill signal exit status.
type ExecRunner struct{}

const maxLoggedStderr = 8 << 10

func (ExecRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	logger.Debug("ocr.exec.start", "cmd", name, "args", strings.Join(args, " "))

	var out, errb bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &out, &errb
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if err == nil {
		logger.Debug("ocr.exec.ok", "cmd", name, "elapsed_ms", elapsed, "stdout_bytes", out.Len())
		return out.Bytes(), errb.Bytes(), nil
	}
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	logger.Warn("ocr.exec.failed",
		"cmd", name,
		"elapsed_ms", elapsed,
		"error", err,
		"stderr", truncate(errb.String(), maxLoggedStderr),
	)
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
