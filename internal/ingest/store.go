package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// StoredFile is the durable copy of an accepted receipt.
type StoredFile struct {
	Path    string
	HashHex string
	Size    int64
}

// Store copies accepted receipts into <root>/receipts so the caller's file
// can go away once processing has started.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: filepath.Join(root, "receipts"), logger: logger}
}

// Dir is where stored receipts live.
func (s *Store) Dir() string { return s.dir }

// Save copies info.Path to <dir>/<jobID>.<ext>, hashing while copying. The
// copy is written to a temp file and renamed into place.
func (s *Store) Save(ctx context.Context, jobID uuid.UUID, info FileInfo) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}
	start := time.Now()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("create storage dir: %w", err)
	}

	src, err := os.Open(info.Path)
	if err != nil {
		return StoredFile{}, fmt.Errorf("open source: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			s.logger.Warn("store.source.close_error", "path", info.Path, "error", err)
		}
	}(src)

	tmp, err := os.CreateTemp(s.dir, ".incoming-*")
	if err != nil {
		return StoredFile{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), src)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return StoredFile{}, fmt.Errorf("copy receipt: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return StoredFile{}, fmt.Errorf("sync receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return StoredFile{}, fmt.Errorf("close receipt: %w", err)
	}

	dst := filepath.Join(s.dir, jobID.String()+"."+info.Ext)
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return StoredFile{}, fmt.Errorf("move receipt into place: %w", err)
	}

	out := StoredFile{Path: dst, HashHex: hex.EncodeToString(h.Sum(nil)), Size: n}
	s.logger.Debug("store.saved",
		"job_id", jobID,
		"src", info.Path,
		"dst", dst,
		"bytes", n,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
