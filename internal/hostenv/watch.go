package hostenv

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/switchboard/internal/logging"
)

// DefaultDebounce coalesces bursts of writes from editors and tools.
const DefaultDebounce = 100 * time.Millisecond

// ErrWatcherClosed is returned when starting a closed watcher.
var ErrWatcherClosed = errors.New("watcher closed")

// ReloadFunc is called after the inventory was reloaded into the inspector.
type ReloadFunc func(ctx context.Context, inv *Inventory)

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *logging.Logger) WatchOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// Watcher reloads an inventory file into a Static inspector whenever it
// changes on disk. A file that fails to load leaves the previous inventory
// in place.
type Watcher struct {
	path     string
	static   *Static
	onReload ReloadFunc
	delay    time.Duration
	logger   *logging.Logger

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	timer    *time.Timer
	reloads  int
	failures int
	lastErr  error
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// Watch starts watching path. The parent directory is watched so files
// replaced by rename are picked up.
func Watch(ctx context.Context, path string, static *Static, onReload ReloadFunc, opts ...WatchOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		static:   static,
		onReload: onReload,
		delay:    DefaultDebounce,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.OrNop(w.logger).WithComponent("hostenv")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	w.closedWg.Add(1)
	go w.processLoop(ctx)
	return w, nil
}

// Path returns the watched inventory file.
func (w *Watcher) Path() string {
	return w.path
}

// Reloads returns the number of successful reloads.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Failures returns the number of reloads that failed to load the file.
func (w *Watcher) Failures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}

// LastError returns the error of the most recent failed reload.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Close stops watching. Pending reloads are discarded.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) processLoop(ctx context.Context) {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				w.schedule(ctx)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inventory watch error", "error", err)
		}
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() { w.reload(ctx) })
}

func (w *Watcher) reload(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	inv, err := LoadInventory(w.path)
	if err != nil {
		w.mu.Lock()
		w.failures++
		w.lastErr = err
		w.mu.Unlock()
		w.logger.Warn("inventory reload failed, keeping previous", "path", w.path, "error", err)
		return
	}

	w.static.Replace(inv)
	w.mu.Lock()
	w.reloads++
	w.lastErr = nil
	w.mu.Unlock()
	w.logger.Info("inventory reloaded", "path", w.path, "collaborators", len(inv.Collaborators))

	if w.onReload != nil {
		w.onReload(ctx, inv)
	}
}
