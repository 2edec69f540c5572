// Package watch triggers configuration reloads when candidate files change or
// on a cron schedule.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 250 * time.Millisecond

// ErrNothingToWatch is returned by Run when no candidate directory exists.
var ErrNothingToWatch = errors.New("no candidate directory exists")

// Watcher reloads when any candidate file is created, written, renamed or
// removed. It watches the parent directories so that a higher-precedence file
// appearing later is noticed too.
type Watcher struct {
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
	reload   func()
	logger   *zap.Logger
	ready    chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewWatcher prepares a watcher for the given candidate paths. Relative paths
// are resolved against the working directory.
func NewWatcher(paths []string, debounce time.Duration, reload func(), logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		files:    make(map[string]struct{}, len(paths)),
		debounce: debounce,
		reload:   reload,
		logger:   logger,
		ready:    make(chan struct{}),
	}

	seen := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.files[abs] = struct{}{}

		dir := filepath.Dir(abs)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Dirs returns the directories that will be watched.
func (w *Watcher) Dirs() []string {
	return append([]string(nil), w.dirs...)
}

// Ready is closed once Run has registered every directory.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is cancelled, reloading after each burst of relevant
// events.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.dirs) == 0 {
		return ErrNothingToWatch
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.logger.Info("watching configuration files",
		zap.Strings("dirs", w.dirs),
		zap.Duration("debounce", w.debounce),
	)
	close(w.ready)

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("configuration watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("configuration file changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			w.trigger()

		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Warn("configuration watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	_, ok := w.files[filepath.Clean(event.Name)]
	return ok
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}
	w.logger.Info("reloading configuration after file change")
	w.reload()
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
