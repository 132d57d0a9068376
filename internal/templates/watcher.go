package templates

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the catalog when fixture files in the templates directory change
type Watcher struct {
	loader   *Loader
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher creates a watcher for dir. Reloads are delayed by debounce so that
// editors writing a file in several steps trigger a single reload.
func NewWatcher(loader *Loader, dir string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// fsnotify does not recurse; fixtures are also loaded one level down.
	entries, err := os.ReadDir(dir)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if err := fw.Add(sub); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", sub, err)
		}
	}

	return &Watcher{
		loader:   loader,
		dir:      dir,
		debounce: debounce,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the watch loop in a goroutine until ctx is cancelled
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Done is closed once the watch loop has exited and the watcher is closed
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.watcher.Close()

	slog.Info("template watcher started", "dir", w.dir, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("template watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 && w.isSubdir(event.Name) {
				if err := w.watcher.Add(event.Name); err != nil {
					slog.Warn("failed to watch template subdirectory", "dir", event.Name, "error", err)
				}
				// The directory may have been moved in with fixtures already inside.
				timer.Reset(w.debounce)
				continue
			}
			if !isFixture(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("template file changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("template watcher error", "error", err)

		case <-timer.C:
			if _, err := w.loader.LoadFromDir(w.dir); err != nil {
				slog.Error("failed to reload templates", "dir", w.dir, "error", err)
			}
		}
	}
}

// isSubdir reports whether path is a directory directly below the watched dir
func (w *Watcher) isSubdir(path string) bool {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(w.dir) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFixture(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
