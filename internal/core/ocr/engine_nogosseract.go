//go:build !gosseract

package ocr

import (
	"fmt"
	"log/slog"
)

func newGosseract(Config, *slog.Logger) (Engine, error) {
	return nil, fmt.Errorf("ocr engine %q not compiled in; rebuild with -tags gosseract", EngineGosseract)
}
