package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounce is how long a path must stay quiet before the watch
// callback fires for it.
const WatchDebounce = 100 * time.Millisecond

// Watch blocks until ctx is done, calling fn with the relative path of every
// .yaml document created or rewritten under the base directory. Directories
// created while watching are picked up automatically.
func (s *LocalStorage) Watch(ctx context.Context, fn func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, s.basePath); err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("storage watcher error", "error", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						slog.Warn("storage watcher: failed to watch new directory", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if !strings.HasSuffix(ev.Name, ".yaml") {
				continue
			}
			rel, err := filepath.Rel(s.basePath, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			mu.Lock()
			if t, ok := timers[rel]; ok {
				t.Reset(WatchDebounce)
			} else {
				timers[rel] = time.AfterFunc(WatchDebounce, func() {
					mu.Lock()
					delete(timers, rel)
					mu.Unlock()
					fn(rel)
				})
			}
			mu.Unlock()
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
