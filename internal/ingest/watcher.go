package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts per file
	SkipDirs    []string      // never watched, e.g. the storage dir
}

// StartWatcher emits receipt paths created or written under the roots. Both
// channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher.start.failed", "error", "no roots provided")
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watcher.create.failed", "error", err)
		return nil, nil, err
	}

	skip := make(map[string]struct{}, len(cfg.SkipDirs))
	for _, d := range cfg.SkipDirs {
		if abs, err := filepath.Abs(d); err == nil {
			skip[abs] = struct{}{}
		}
	}
	skipped := func(path string) bool {
		abs, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		_, ok := skip[abs]
		return ok
	}

	// addDir watches root and every directory below it, reporting files to found.
	addDir := func(root string, found func(string)) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if skipped(path) || (path != root && IsHidden(path)) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if found != nil && AllowedExt(filepath.Ext(path)) && !IsHidden(path) {
				found(path)
			}
			return nil
		})
	}

	var initial []string
	var collect func(string)
	if cfg.InitialScan {
		collect = func(p string) { initial = append(initial, p) }
	}
	for _, r := range cfg.Roots {
		if err := addDir(r, collect); err != nil {
			logger.Error("watcher.add_root.failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	logger.Info("watcher.started", "roots", cfg.Roots, "initial", len(initial), "debounce", cfg.Debounce)

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	type pendingEmit struct{ t *time.Timer }
	var (
		mu      sync.Mutex
		pending = map[string]*pendingEmit{}
		wg      sync.WaitGroup
	)
	emit := func(path string) {
		select {
		case evCh <- path:
		case <-ctx.Done():
		}
	}
	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if p, ok := pending[path]; ok && p.t.Stop() {
			p.t.Reset(cfg.Debounce)
			return
		}
		entry := &pendingEmit{}
		wg.Add(1)
		entry.t = time.AfterFunc(cfg.Debounce, func() {
			defer wg.Done()
			mu.Lock()
			if pending[path] == entry {
				delete(pending, path)
			}
			mu.Unlock()
			emit(path)
		})
		pending[path] = entry
	}

	deliver := func(path string) {
		if cfg.Debounce > 0 {
			schedule(path)
			return
		}
		emit(path)
	}

	go func() {
		defer close(errCh)
		defer close(evCh)
		defer func() {
			mu.Lock()
			for p, e := range pending {
				if e.t.Stop() {
					wg.Done()
				}
				delete(pending, p)
			}
			mu.Unlock()
			wg.Wait()
		}()
		defer func(w *fsnotify.Watcher) {
			if err := w.Close(); err != nil {
				logger.Warn("watcher.close.failed", "error", err)
			}
		}(w)

		for _, p := range initial {
			emit(p)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					if st, err := os.Stat(e.Name); err == nil && st.IsDir() && !skipped(e.Name) && !IsHidden(e.Name) {
						// files may land in a new directory before it is watched
						if err := addDir(e.Name, deliver); err != nil {
							logger.Warn("watcher.add_dir.failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !AllowedExt(filepath.Ext(e.Name)) || IsHidden(e.Name) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				deliver(e.Name)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
