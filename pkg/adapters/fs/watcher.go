package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/contentlayer/pkg/core"
)

// DefaultDebounce is the window used to coalesce bursts of filesystem events.
const DefaultDebounce = 50 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Logger   *slog.Logger
	Debounce time.Duration
	// OnChange receives the distinct paths changed within one debounce window.
	OnChange     func(paths []string)
	ErrorHandler func(error)
}

// Watcher delivers filesystem changes below registered paths.
// It implements core.Watcher so loaders can register interest directly.
type Watcher struct {
	config    WatcherConfig
	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	targets   map[string]bool
	debouncer *debouncer
	active    bool
	cancel    context.CancelFunc
	done      chan struct{}
}

var _ core.Watcher = (*Watcher)(nil)

// NewWatcher creates an idle watcher. Paths can be added before or after Start.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		config:  config,
		fsw:     fsw,
		targets: make(map[string]bool),
	}
	w.debouncer = newDebouncer(config.Debounce, w.flush)
	return w, nil
}

// Add registers paths. Directories are watched recursively; files are
// watched through their parent directory.
func (w *Watcher) Add(paths ...string) error {
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}

		w.mu.Lock()
		known := w.targets[abs]
		w.targets[abs] = true
		w.mu.Unlock()
		if known {
			continue
		}

		info, err := os.Stat(abs)
		switch {
		case err == nil && info.IsDir():
			if err := w.recursiveAdd(abs); err != nil {
				return err
			}
		case err == nil || os.IsNotExist(err):
			if dir := filepath.Dir(abs); dirExists(dir) {
				if err := w.fsw.Add(dir); err != nil {
					return fmt.Errorf("failed to watch %s: %w", dir, err)
				}
			}
		default:
			return err
		}
	}
	return nil
}

// Targets returns the registered paths, sorted.
func (w *Watcher) Targets() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.targets))
	for t := range w.targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Start runs the event loop until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	w.mu.Lock()
	if w.active {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.active = true
	w.done = make(chan struct{})
	w.mu.Unlock()

	lifecycle.Go(runCtx, w.run, lifecycle.WithErrorHandler(func(err error) {
		w.handleError(fmt.Errorf("watcher loop: %w", err))
	}))
	return nil
}

// Close stops the event loop and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	cancel, done, active := w.cancel, w.done, w.active
	w.mu.Unlock()

	if active {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			return fmt.Errorf("timed out waiting for watcher to stop")
		}
		return nil
	}
	return w.fsw.Close()
}

// Active reports whether the event loop is running.
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *Watcher) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.config.Logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.config.Logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer func() {
		w.mu.Lock()
		w.active = false
		close(w.done)
		w.mu.Unlock()
	}()
	defer w.fsw.Close()

	err = w.mainEventLoop(ctx)

	// Stop accepting new events and let in-flight flushes finish.
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *Watcher) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processEvent(event)

		case wErr, ok := <-w.fsw.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleError(wErr)
		}
	}
}

func (w *Watcher) processEvent(event fsnotify.Event) {
	w.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.isTarget(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) && dirExists(event.Name) {
		if err := w.recursiveAdd(event.Name); err != nil {
			w.handleError(err)
		}
	}

	w.debouncer.add(event.Name)
}

func (w *Watcher) isTarget(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for t := range w.targets {
		if name == t || strings.HasPrefix(name, t+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) recursiveAdd(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) flush(paths []string) {
	if w.config.OnChange != nil {
		w.config.OnChange(paths)
	}
}

func (w *Watcher) handleError(err error) {
	w.config.Logger.Error("fsnotify error", "error", err)
	if w.config.ErrorHandler != nil {
		w.config.ErrorHandler(err)
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// debouncer collects paths and flushes them once no new path arrived for the wait window.
type debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
	fn      func([]string)
}

func newDebouncer(wait time.Duration, fn func([]string)) *debouncer {
	return &debouncer{
		wait:    wait,
		pending: make(map[string]struct{}),
		fn:      fn,
	}
}

func (d *debouncer) add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending[path] = struct{}{}
	if d.timer != nil && d.timer.Stop() {
		d.timer.Reset(d.wait)
		return
	}
	d.wg.Add(1)
	d.timer = time.AfterFunc(d.wait, d.fire)
}

func (d *debouncer) fire() {
	defer d.wg.Done()

	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	d.pending = make(map[string]struct{})
	d.timer = nil
	d.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	d.fn(paths)
}

func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil && d.timer.Stop() {
		d.timer = nil
		d.wg.Done()
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
