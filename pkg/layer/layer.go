// Package layer implements the sync orchestrator. A ContentLayer resolves the
// collection configuration, decides what cached data is still valid, runs
// every loader one at a time against a single store and persists the result.
package layer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/contentlayer/pkg/adapters/fs"
	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/store"
)

// Metadata keys recorded in the store.
const (
	MetaContentDigest = "content-config-digest"
	MetaBuildDigest   = "build-config-digest"
	MetaEngineVersion = "engine-version"
	// MetaCollectionDigestPrefix is followed by the collection name.
	MetaCollectionDigestPrefix = "collection-digest:"
)

// DefaultDataStoreFile is the document name used below the cache directory.
const DefaultDataStoreFile = "data-store.json"

// DefaultCacheDir is used when the settings carry no cache directory.
const DefaultCacheDir = ".contentlayer"

// Config configures a ContentLayer.
type Config struct {
	Source ConfigSource
	// DataStoreFile overrides <cacheDir>/data-store.json.
	DataStoreFile string
	Renderer      core.Renderer
	Logger        *slog.Logger
	// Watch registers loader paths with a filesystem watcher and re-syncs
	// the affected collections on change.
	Watch         bool
	WatchDebounce time.Duration
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

// SyncOptions tune a single pass.
type SyncOptions struct {
	// Force clears the whole store before loading.
	Force bool
	// Collections restricts the pass to the named collections.
	Collections []string
	// Context is handed to loaders as LoaderContext.RefreshContext.
	Context map[string]any
}

// ContentLayer owns a data store and keeps it in sync with its loaders.
type ContentLayer struct {
	config Config
	logger *slog.Logger

	// syncMu serializes passes: two passes must never share the store.
	syncMu  sync.Mutex
	syncing atomic.Bool
	closed  atomic.Bool

	// guarded by syncMu
	store     *store.Store
	storePath string

	events chan core.SyncEvent

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup

	reqMu      sync.Mutex
	requesting bool
	pending    *SyncOptions

	watchMu  sync.Mutex
	watcher  *fs.Watcher
	watchers map[string][]string // registered path -> collections

	stateMu sync.Mutex
	lastRun *runSummary
}

type runSummary struct {
	ID       string
	Path     string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// New creates a ContentLayer. Nothing is loaded until the first Sync.
func New(config Config) (*ContentLayer, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("%w: a configuration source is required", core.ErrConfig)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ContentLayer{
		config:   config,
		logger:   config.Logger,
		events:   make(chan core.SyncEvent, config.EventBuffer),
		bgCtx:    ctx,
		bgCancel: cancel,
		watchers: make(map[string][]string),
	}, nil
}

// Events delivers sync lifecycle events. Events are dropped when the buffer is full.
// The channel is closed by Shutdown.
func (l *ContentLayer) Events() <-chan core.SyncEvent {
	return l.events
}

// IsSyncing reports whether a pass is in flight.
func (l *ContentLayer) IsSyncing() bool {
	return l.syncing.Load()
}

// Store returns the store of the last pass, or nil before the first one.
// It must not be read while a pass is running.
func (l *ContentLayer) Store() *store.Store {
	l.syncMu.Lock()
	defer l.syncMu.Unlock()
	return l.store
}

// Sync runs one pass. Concurrent calls wait for each other.
func (l *ContentLayer) Sync(ctx context.Context, opts SyncOptions) (err error) {
	if l.closed.Load() {
		return core.ErrClosed
	}

	l.syncMu.Lock()
	defer l.syncMu.Unlock()
	if l.closed.Load() {
		return core.ErrClosed
	}
	l.syncing.Store(true)
	defer l.syncing.Store(false)

	runID := uuid.NewString()
	start := time.Now()
	logger := l.logger.With("run", runID)
	var (
		ran  []string
		path string
	)

	l.emit(core.SyncEvent{Type: core.SyncStarted, RunID: runID, Collections: opts.Collections, Timestamp: start.Unix()})
	defer func() {
		event := core.SyncEvent{
			Type:        core.SyncCompleted,
			RunID:       runID,
			Collections: ran,
			Duration:    time.Since(start),
			Timestamp:   time.Now().Unix(),
		}
		if err != nil {
			event.Type = core.SyncFailed
			event.Err = err
			logger.Error("sync failed", "duration", event.Duration, "error", err)
		} else {
			logger.Info("synced content", "collections", len(ran), "duration", event.Duration)
		}
		l.recordRun(runSummary{ID: runID, Path: path, Started: start, Duration: event.Duration, Err: err})
		l.emit(event)
	}()

	cfg, err := l.config.Source.Resolve(ctx)
	if err != nil {
		if errors.Is(err, core.ErrConfig) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	selected, err := selectCollections(cfg, opts.Collections)
	if err != nil {
		return err
	}

	path = l.dataStoreFile(cfg)
	s := l.loadStore(path, logger)
	if full := l.invalidate(s, cfg, selected, opts, logger); full && len(opts.Collections) > 0 {
		logger.Info("store was cleared, syncing every collection")
		selected = cfg.Collections
	}

	ran, err = l.runLoaders(ctx, s, cfg, selected, opts, logger)
	if err != nil {
		return err
	}

	if !s.Dirty() {
		if _, statErr := os.Stat(path); statErr == nil {
			logger.Debug("data store unchanged", "path", path)
			return nil
		}
	}
	if err := s.WriteFile(path); err != nil {
		return err
	}
	logger.Debug("wrote data store", "path", path)
	return nil
}

func selectCollections(cfg *ResolvedConfig, names []string) ([]Collection, error) {
	if len(names) == 0 {
		return cfg.Collections, nil
	}
	out := make([]Collection, 0, len(names))
	for _, name := range names {
		col, ok := cfg.Collection(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown collection %q", core.ErrConfig, name)
		}
		out = append(out, col)
	}
	return out, nil
}

func (l *ContentLayer) dataStoreFile(cfg *ResolvedConfig) string {
	settings := cfg.Settings
	file := l.config.DataStoreFile
	if file == "" {
		file = cfg.DataStoreFile
	}
	if file != "" {
		if filepath.IsAbs(file) || settings.Root == "" {
			return file
		}
		return filepath.Join(settings.Root, file)
	}
	cacheDir := settings.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(settings.Root, cacheDir)
	}
	return filepath.Join(cacheDir, DefaultDataStoreFile)
}

// loadStore returns the working store, reading the document on first use or
// when the document path changed. A failed pass keeps its store: the document
// stays untouched while entries from loaders that succeeded remain current.
func (l *ContentLayer) loadStore(path string, logger *slog.Logger) *store.Store {
	if l.store != nil && l.storePath == path {
		return l.store
	}

	s, err := store.FromFile(path)
	if err != nil {
		logger.Warn("ignoring unreadable data store, starting fresh", "path", path, "error", err)
		s = store.New()
	}
	l.store, l.storePath = s, path
	return s
}

// invalidate clears what the new configuration makes stale, then records the
// new digests before any loader runs. It reports whether the whole store was cleared.
func (l *ContentLayer) invalidate(s *store.Store, cfg *ResolvedConfig, selected []Collection, opts SyncOptions, logger *slog.Logger) bool {
	meta := s.MetaStore()
	contentDigest := cfg.contentDigest()
	buildDigest := cfg.buildDigest()

	reason := ""
	switch {
	case opts.Force:
		reason = "forced"
	case metaValue(meta, MetaContentDigest) != contentDigest:
		reason = "content config changed"
	case metaValue(meta, MetaBuildDigest) != buildDigest:
		reason = "build config changed"
	case metaValue(meta, MetaEngineVersion) != core.Version:
		reason = "engine version changed"
	}

	full := reason != ""
	if full {
		if len(s.Collections()) > 0 || len(meta.Keys()) > 0 {
			logger.Info("clearing data store", "reason", reason)
		}
		s.ClearAll()
		selected = cfg.Collections
	} else {
		for _, col := range selected {
			prev, ok := meta.Get(MetaCollectionDigestPrefix + col.Name)
			if ok && prev != collectionDigest(col) {
				logger.Info("clearing collection", "collection", col.Name, "reason", "collection config changed")
				s.Clear(col.Name)
			}
		}
		if len(opts.Collections) == 0 {
			for _, name := range s.Collections() {
				if _, ok := cfg.Collection(name); !ok {
					logger.Info("dropping collection no longer configured", "collection", name)
					s.Clear(name)
				}
			}
			for _, key := range meta.Keys() {
				name, ok := strings.CutPrefix(key, MetaCollectionDigestPrefix)
				if _, configured := cfg.Collection(name); ok && !configured {
					meta.Delete(key)
				}
			}
		}
	}

	meta.Set(MetaContentDigest, contentDigest)
	meta.Set(MetaBuildDigest, buildDigest)
	meta.Set(MetaEngineVersion, core.Version)
	for _, col := range selected {
		meta.Set(MetaCollectionDigestPrefix+col.Name, collectionDigest(col))
	}
	return full
}

func metaValue(m *store.MetaStore, key string) string {
	v, _ := m.Get(key)
	return v
}

// runLoaders runs the selected loaders strictly one at a time. A failing
// loader does not stop the others.
func (l *ContentLayer) runLoaders(ctx context.Context, s *store.Store, cfg *ResolvedConfig, selected []Collection, opts SyncOptions, logger *slog.Logger) ([]string, error) {
	var (
		mu   sync.Mutex
		errs []error
		ran  []string
	)

	var g errgroup.Group
	g.SetLimit(1)

	for _, col := range selected {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("sync cancelled before collection %q: %w", col.Name, err))
			break
		}
		g.Go(func() error {
			err := l.runLoader(ctx, s, cfg, col, opts, logger)
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, col.Name)
			if err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	mu.Lock()
	defer mu.Unlock()
	return ran, errors.Join(errs...)
}

func (l *ContentLayer) runLoader(ctx context.Context, s *store.Store, cfg *ResolvedConfig, col Collection, opts SyncOptions, logger *slog.Logger) (err error) {
	name := col.Loader.Name()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: collection %q: loader %q panicked: %v", core.ErrLoader, col.Name, name, recovered)
			logger.Error("loader panicked", "collection", col.Name, "loader", name, "error", recovered, "stack", string(debug.Stack()))
		}
	}()

	var watcher core.Watcher
	if l.config.Watch {
		w, werr := l.ensureWatcher()
		if werr != nil {
			logger.Warn("file watching disabled", "error", werr)
		} else {
			watcher = &collectionWatcher{layer: l, collection: col.Name, watcher: w}
		}
	}

	lc := NewLoaderContext(s, col, ContextOptions{
		Renderer:       l.config.Renderer,
		Logger:         logger,
		Watcher:        watcher,
		Settings:       cfg.Settings,
		RefreshContext: opts.Context,
	})

	start := time.Now()
	logger.Debug("running loader", "collection", col.Name, "loader", name)
	if err := col.Loader.Load(ctx, lc); err != nil {
		logger.Error("loader failed", "collection", col.Name, "loader", name, "error", err)
		return fmt.Errorf("%w: collection %q: loader %q: %w", core.ErrLoader, col.Name, name, err)
	}
	logger.Debug("loader finished", "collection", col.Name, "loader", name,
		"entries", len(s.Keys(col.Name)), "duration", time.Since(start))
	return nil
}

// RequestSync schedules a pass in the background. Requests arriving while a
// requested pass runs are merged into a single follow-up pass.
func (l *ContentLayer) RequestSync(opts SyncOptions) {
	// closed flips under reqMu, so Add never races Shutdown's Wait.
	l.reqMu.Lock()
	if l.closed.Load() {
		l.reqMu.Unlock()
		return
	}
	if l.requesting {
		l.pending = mergeOptions(l.pending, opts)
		l.reqMu.Unlock()
		return
	}
	l.requesting = true
	l.bgWG.Add(1)
	l.reqMu.Unlock()

	lifecycle.Go(l.bgCtx, func(ctx context.Context) error {
		defer l.bgWG.Done()
		l.drainRequests(ctx, opts)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		l.logger.Error("background sync stopped", "error", err)
	}))
}

func (l *ContentLayer) drainRequests(ctx context.Context, opts SyncOptions) {
	for {
		if err := l.Sync(ctx, opts); err != nil && !errors.Is(err, core.ErrClosed) {
			l.logger.Debug("requested sync failed", "error", err)
		}

		l.reqMu.Lock()
		if l.pending == nil || l.closed.Load() {
			l.requesting = false
			l.pending = nil
			l.reqMu.Unlock()
			return
		}
		opts = *l.pending
		l.pending = nil
		l.reqMu.Unlock()
	}
}

// mergeOptions unions two requests. An empty collection list means all collections.
func mergeOptions(pending *SyncOptions, next SyncOptions) *SyncOptions {
	if pending == nil {
		return &next
	}
	merged := SyncOptions{Force: pending.Force || next.Force}
	if len(pending.Collections) > 0 && len(next.Collections) > 0 {
		seen := make(map[string]bool)
		for _, name := range append(append([]string(nil), pending.Collections...), next.Collections...) {
			if !seen[name] {
				seen[name] = true
				merged.Collections = append(merged.Collections, name)
			}
		}
	}
	if pending.Context != nil || next.Context != nil {
		merged.Context = make(map[string]any)
		for k, v := range pending.Context {
			merged.Context[k] = v
		}
		for k, v := range next.Context {
			merged.Context[k] = v
		}
	}
	return &merged
}

// Shutdown stops the watcher, waits for background passes and closes Events.
func (l *ContentLayer) Shutdown(ctx context.Context) error {
	l.reqMu.Lock()
	first := l.closed.CompareAndSwap(false, true)
	l.reqMu.Unlock()
	if !first {
		return nil
	}
	l.bgCancel()

	var errs []error
	l.watchMu.Lock()
	w := l.watcher
	l.watchMu.Unlock()
	if w != nil {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		l.bgWG.Wait()
		// Waiting on syncMu lets a direct Sync call finish before Events closes.
		l.syncMu.Lock()
		close(l.events)
		l.syncMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("shutdown: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}

func (l *ContentLayer) emit(e core.SyncEvent) {
	select {
	case l.events <- e:
	default:
		l.logger.Debug("dropping sync event, buffer full", "event", e.Type)
	}
}

func (l *ContentLayer) recordRun(r runSummary) {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	l.lastRun = &r
}
