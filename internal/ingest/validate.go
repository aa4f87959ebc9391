package ingest

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/expense-tracker/constants"
	"github.com/joseph-ayodele/expense-tracker/internal/common"
)

const sniffLen = 512

// FileInfo describes a receipt file that passed the boundary checks.
type FileInfo struct {
	Path   string
	Name   string
	Ext    string // lowercase, no dot
	Format string // constants.PDF or constants.IMAGE
	MIME   string
	Size   int64
}

// Validate applies the size, extension and content-type checks that run
// before any job exists. Failures wrap ErrFileTooLarge or ErrUnsupportedFile.
func Validate(path string, maxBytes int64) (FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("abs path: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return FileInfo{}, common.NewAppError("INVALID_INPUT", "stat "+abs+": "+err.Error(), common.ErrInvalidInput)
	}
	if st.IsDir() {
		return FileInfo{}, common.NewAppError("INVALID_INPUT", abs+" is a directory", common.ErrInvalidInput)
	}
	if maxBytes > 0 && st.Size() > maxBytes {
		return FileInfo{}, common.NewAppError("FILE_TOO_LARGE",
			fmt.Sprintf("%s is %d bytes, limit %d", filepath.Base(abs), st.Size(), maxBytes), common.ErrFileTooLarge)
	}
	if st.Size() == 0 {
		return FileInfo{}, common.NewAppError("UNSUPPORTED_FILE", filepath.Base(abs)+" is empty", common.ErrUnsupportedFile)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if !AllowedExt(ext) {
		return FileInfo{}, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("extension %q", ext), common.ErrUnsupportedFile)
	}

	mime, err := sniff(abs)
	if err != nil {
		return FileInfo{}, err
	}
	if _, ok := constants.AllowedMIMETypes[mime]; !ok {
		return FileInfo{}, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("content type %q", mime), common.ErrUnsupportedFile)
	}
	format := constants.MapExtToFormat(ext)
	if (format == constants.PDF) != (mime == "application/pdf") {
		return FileInfo{}, common.NewAppError("UNSUPPORTED_FILE",
			fmt.Sprintf("extension %q does not match content type %q", ext, mime), common.ErrUnsupportedFile)
	}

	return FileInfo{
		Path:   abs,
		Name:   filepath.Base(abs),
		Ext:    ext,
		Format: format,
		MIME:   mime,
		Size:   st.Size(),
	}, nil
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) { _ = f.Close() }(f)

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read header: %w", err)
	}
	mime := http.DetectContentType(buf[:n])
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime), nil
}
