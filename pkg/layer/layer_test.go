package layer_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/contentlayer/internal/testutil"
	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/layer"
	"github.com/aretw0/contentlayer/pkg/loaders"
	"github.com/aretw0/contentlayer/pkg/schema"
	"github.com/aretw0/contentlayer/pkg/store"
)

func newLayer(t *testing.T, root string, collections ...layer.Collection) (*layer.ContentLayer, *testutil.LogBuffer, *layer.StaticConfig) {
	t.Helper()
	logger, logs := testutil.NewLogger()
	cfg := &layer.StaticConfig{
		Collections: collections,
		Settings:    core.Settings{Root: root},
	}
	l, err := layer.New(layer.Config{Source: cfg, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Shutdown(context.Background()) })
	return l, logs, cfg
}

func records(items ...map[string]any) func(context.Context) ([]map[string]any, error) {
	return func(context.Context) ([]map[string]any, error) { return items, nil }
}

func dataStorePath(root string) string {
	return filepath.Join(root, layer.DefaultCacheDir, layer.DefaultDataStoreFile)
}

func TestSync_DuplicateIDOverwritesWithOneWarning(t *testing.T) {
	root := t.TempDir()
	l, logs, _ := newLayer(t, root, layer.Collection{
		Name:   "dogs",
		Schema: schema.Object(schema.Fields{"breed": schema.String()}),
		Loader: loaders.Inline("dogs", records(
			map[string]any{"id": "beagle", "breed": "A"},
			map[string]any{"id": "beagle", "breed": "B"},
		)),
	})

	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))

	e, ok := l.Store().Get("dogs", "beagle")
	require.True(t, ok)
	assert.Equal(t, "B", e.Data["breed"])
	assert.Len(t, l.Store().Values("dogs"), 1)
	assert.Equal(t, 1, logs.Count(slog.LevelWarn, "duplicate id"))
}

func TestSync_RunsOneLoaderAtATime(t *testing.T) {
	var (
		active    atomic.Int32
		maxActive atomic.Int32
		mu        sync.Mutex
		calls     []string
	)
	instrumented := func(name string) core.Loader {
		return core.NewLoader(name, func(ctx context.Context, lc *core.LoaderContext) error {
			n := active.Add(1)
			defer active.Add(-1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			for i := 0; i < 3; i++ {
				mu.Lock()
				calls = append(calls, name)
				mu.Unlock()
				if _, err := lc.Store.Set(core.Entry{ID: name + string(rune('a'+i))}); err != nil {
					return err
				}
				time.Sleep(5 * time.Millisecond)
			}
			return nil
		})
	}

	l, _, _ := newLayer(t, t.TempDir(),
		layer.Collection{Name: "a", Loader: instrumented("A")},
		layer.Collection{Name: "b", Loader: instrumented("B")},
		layer.Collection{Name: "c", Loader: instrumented("C")},
	)
	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, []string{"A", "A", "A", "B", "B", "B", "C", "C", "C"}, calls)
}

func TestSync_IdempotentWithUnchangedInputs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "dogs.json"),
		[]byte(`[{"id":"lab","breed":"Labrador"},{"id":"pug","breed":"Pug"}]`), 0644))

	l, _, _ := newLayer(t, root, layer.Collection{
		Name:   "dogs",
		Schema: schema.Object(schema.Fields{"breed": schema.String()}),
		Loader: loaders.File("dogs.json"),
	})

	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))
	first, err := os.ReadFile(dataStorePath(root))
	require.NoError(t, err)

	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))
	second, err := os.ReadFile(dataStorePath(root))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

// snapshotLoader records how many entries were present when it started and
// then writes one more.
type snapshotLoader struct {
	name   string
	seen   []int
	digest string
}

func (s *snapshotLoader) Name() string   { return s.name }
func (s *snapshotLoader) Digest() string { return s.digest }
func (s *snapshotLoader) Load(_ context.Context, lc *core.LoaderContext) error {
	s.seen = append(s.seen, len(lc.Store.Keys()))
	_, err := lc.Store.Set(core.Entry{ID: s.name + "-" + string(rune('0'+len(s.seen)))})
	return err
}

func TestSync_Invalidation(t *testing.T) {
	root := t.TempDir()
	posts := &snapshotLoader{name: "posts", digest: "v1"}
	authors := &snapshotLoader{name: "authors", digest: "v1"}
	l, _, cfg := newLayer(t, root,
		layer.Collection{Name: "posts", Loader: posts},
		layer.Collection{Name: "authors", Loader: authors},
	)
	ctx := context.Background()

	require.NoError(t, l.Sync(ctx, layer.SyncOptions{}))
	require.NoError(t, l.Sync(ctx, layer.SyncOptions{}))
	// Unchanged configuration keeps prior entries.
	assert.Equal(t, []int{0, 1}, posts.seen)
	assert.Equal(t, []int{0, 1}, authors.seen)

	// A schema change alters the content digest and clears everything.
	cfg.Collections[0].Schema = schema.Object(schema.Fields{"title": schema.String(schema.Optional())})
	require.NoError(t, l.Sync(ctx, layer.SyncOptions{}))
	assert.Equal(t, []int{0, 1, 0}, posts.seen)
	assert.Equal(t, []int{0, 1, 0}, authors.seen)

	// An explicit content digest pins the global digest: only the changed
	// collection is cleared.
	cfg.ContentDigest = "pinned"
	require.NoError(t, l.Sync(ctx, layer.SyncOptions{}))
	posts.digest = "v2"
	require.NoError(t, l.Sync(ctx, layer.SyncOptions{}))
	assert.Equal(t, []int{0, 1, 0, 0, 0}, posts.seen)
	assert.Equal(t, []int{0, 1, 0, 0, 1}, authors.seen)
}

func TestSync_ForceClearsStore(t *testing.T) {
	loader := &snapshotLoader{name: "posts"}
	l, _, _ := newLayer(t, t.TempDir(), layer.Collection{Name: "posts", Loader: loader})

	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))
	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{Force: true}))
	assert.Equal(t, []int{0, 0}, loader.seen)
}

func TestSync_ReloadsPersistedStore(t *testing.T) {
	root := t.TempDir()
	loader := &snapshotLoader{name: "posts"}
	l, _, _ := newLayer(t, root, layer.Collection{Name: "posts", Loader: loader})
	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))

	// A new handle over the same document sees the previous entries.
	again, _, _ := newLayer(t, root, layer.Collection{Name: "posts", Loader: loader})
	require.NoError(t, again.Sync(context.Background(), layer.SyncOptions{}))
	assert.Equal(t, []int{0, 1}, loader.seen)
}

func TestSync_LoaderFailureIsIsolated(t *testing.T) {
	root := t.TempDir()
	boom := errors.New("upstream unavailable")
	fail := false

	flaky := core.NewLoader("flaky", func(ctx context.Context, lc *core.LoaderContext) error {
		if fail {
			return boom
		}
		_, err := lc.Store.Set(core.Entry{ID: "x"})
		return err
	})
	var siblingRuns int
	sibling := core.NewLoader("sibling", func(ctx context.Context, lc *core.LoaderContext) error {
		siblingRuns++
		_, err := lc.Store.Set(core.Entry{ID: "run", Data: core.Data{"n": siblingRuns}})
		return err
	})

	l, logs, _ := newLayer(t, root,
		layer.Collection{Name: "first", Loader: flaky},
		layer.Collection{Name: "second", Loader: sibling},
	)
	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))
	before, err := os.ReadFile(dataStorePath(root))
	require.NoError(t, err)

	fail = true
	err = l.Sync(context.Background(), layer.SyncOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrLoader))
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), `"first"`)
	assert.Equal(t, 2, siblingRuns, "sibling loader must still run")
	assert.GreaterOrEqual(t, logs.Count(slog.LevelError, "loader failed"), 1)

	after, err := os.ReadFile(dataStorePath(root))
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed sync must not touch the document")

	// The sibling's fresh data stays in memory for the next attempt.
	run, ok := l.Store().Get("second", "run")
	require.True(t, ok)
	assert.Equal(t, 2, run.Data["n"])
	assert.True(t, l.Store().Has("first", "x"))

	fail = false
	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))
	persisted, err := store.FromFile(dataStorePath(root))
	require.NoError(t, err)
	run, ok = persisted.Get("second", "run")
	require.True(t, ok)
	assert.Equal(t, float64(3), run.Data["n"])
}

func TestSync_RecoversLoaderPanic(t *testing.T) {
	var ran bool
	l, _, _ := newLayer(t, t.TempDir(),
		layer.Collection{Name: "bad", Loader: core.NewLoader("bad", func(context.Context, *core.LoaderContext) error {
			panic("nil map")
		})},
		layer.Collection{Name: "good", Loader: core.NewLoader("good", func(context.Context, *core.LoaderContext) error {
			ran = true
			return nil
		})},
	)

	err := l.Sync(context.Background(), layer.SyncOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrLoader))
	assert.Contains(t, err.Error(), "panicked")
	assert.True(t, ran)
}

func TestSync_ConfigErrors(t *testing.T) {
	noop := core.NewLoader("noop", func(context.Context, *core.LoaderContext) error { return nil })

	cases := []struct {
		name        string
		collections []layer.Collection
		opts        layer.SyncOptions
	}{
		{"duplicate names", []layer.Collection{{Name: "a", Loader: noop}, {Name: "a", Loader: noop}}, layer.SyncOptions{}},
		{"missing loader", []layer.Collection{{Name: "a"}}, layer.SyncOptions{}},
		{"non-object schema", []layer.Collection{{Name: "a", Loader: noop, Schema: schema.String()}}, layer.SyncOptions{}},
		{"malformed schema", []layer.Collection{{Name: "a", Loader: noop, Schema: schema.Object(schema.Fields{"r": {Type: schema.KindReference}})}}, layer.SyncOptions{}},
		{"unknown filter", []layer.Collection{{Name: "a", Loader: noop}}, layer.SyncOptions{Collections: []string{"b"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			l, _, _ := newLayer(t, root, tc.collections...)
			err := l.Sync(context.Background(), tc.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfig))
			assert.NoFileExists(t, dataStorePath(root))
		})
	}
}

func TestSync_CorruptDocumentStartsFresh(t *testing.T) {
	root := t.TempDir()
	path := dataStorePath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0644))

	loader := &snapshotLoader{name: "posts"}
	l, logs, _ := newLayer(t, root, layer.Collection{Name: "posts", Loader: loader})
	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))

	assert.Equal(t, 1, logs.Count(slog.LevelWarn, "unreadable data store"))
	assert.Equal(t, []string{"posts-1"}, l.Store().Keys("posts"))
}

func TestSync_CollectionFilter(t *testing.T) {
	posts := &snapshotLoader{name: "posts"}
	authors := &snapshotLoader{name: "authors"}
	l, _, _ := newLayer(t, t.TempDir(),
		layer.Collection{Name: "posts", Loader: posts},
		layer.Collection{Name: "authors", Loader: authors},
	)
	ctx := context.Background()

	require.NoError(t, l.Sync(ctx, layer.SyncOptions{}))
	require.NoError(t, l.Sync(ctx, layer.SyncOptions{Collections: []string{"posts"}}))

	assert.Len(t, posts.seen, 2)
	assert.Len(t, authors.seen, 1)
	assert.Len(t, l.Store().Keys("authors"), 1, "unselected collections are kept")
}

func TestSync_DropsRemovedCollections(t *testing.T) {
	noop := core.NewLoader("noop", func(ctx context.Context, lc *core.LoaderContext) error {
		_, err := lc.Store.Set(core.Entry{ID: "e"})
		return err
	})
	l, _, cfg := newLayer(t, t.TempDir(),
		layer.Collection{Name: "keep", Loader: noop},
		layer.Collection{Name: "gone", Loader: noop},
	)
	cfg.ContentDigest = "pinned"
	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))

	cfg.Collections = cfg.Collections[:1]
	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))
	assert.Equal(t, []string{"keep"}, l.Store().Collections())
	assert.False(t, l.Store().MetaStore().Has(layer.MetaCollectionDigestPrefix+"gone"))
}

func TestRequestSync_Coalesces(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	var passes atomic.Int32

	blocking := core.NewLoader("blocking", func(ctx context.Context, lc *core.LoaderContext) error {
		passes.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})
	l, _, _ := newLayer(t, t.TempDir(), layer.Collection{Name: "posts", Loader: blocking})

	l.RequestSync(layer.SyncOptions{})
	<-started
	assert.True(t, l.IsSyncing())

	l.RequestSync(layer.SyncOptions{})
	l.RequestSync(layer.SyncOptions{})
	l.RequestSync(layer.SyncOptions{})
	close(release)

	require.Eventually(t, func() bool {
		return passes.Load() == 2 && !l.IsSyncing()
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), passes.Load(), "overlapping requests must collapse into one follow-up pass")
}

func TestRequestSync_ConcurrentWithShutdown(t *testing.T) {
	var passes atomic.Int32
	l, _, _ := newLayer(t, t.TempDir(), layer.Collection{
		Name: "posts",
		Loader: core.NewLoader("counting", func(context.Context, *core.LoaderContext) error {
			passes.Add(1)
			return nil
		}),
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.RequestSync(layer.SyncOptions{})
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))
	wg.Wait()

	after := passes.Load()
	l.RequestSync(layer.SyncOptions{})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, passes.Load(), "no pass may start after shutdown")
}

func TestEventsAndShutdown(t *testing.T) {
	l, _, _ := newLayer(t, t.TempDir(), layer.Collection{
		Name:   "posts",
		Loader: core.NewLoader("noop", func(context.Context, *core.LoaderContext) error { return nil }),
	})

	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))
	require.NoError(t, l.Shutdown(context.Background()))

	var types []core.SyncEventType
	for e := range l.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []core.SyncEventType{core.SyncStarted, core.SyncCompleted}, types)

	err := l.Sync(context.Background(), layer.SyncOptions{})
	assert.True(t, errors.Is(err, core.ErrClosed))
}

func TestState(t *testing.T) {
	root := t.TempDir()
	l, _, _ := newLayer(t, root, layer.Collection{
		Name:   "posts",
		Loader: core.NewLoader("noop", func(context.Context, *core.LoaderContext) error { return nil }),
	})
	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))

	state, ok := l.State().(layer.LayerState)
	require.True(t, ok)
	assert.False(t, state.Syncing)
	assert.NotEmpty(t, state.LastRunID)
	assert.Equal(t, dataStorePath(root), state.DataStoreFile)
	assert.Empty(t, state.LastError)
	assert.Equal(t, "content-layer", l.ComponentType())
}

func TestWatch_ResyncsChangedCollection(t *testing.T) {
	root := t.TempDir()
	posts := filepath.Join(root, "posts")
	require.NoError(t, os.MkdirAll(posts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(posts, "a.md"), []byte("# A\n"), 0o644))

	var authorLoads atomic.Int32
	logger, _ := testutil.NewLogger()
	l, err := layer.New(layer.Config{
		Source: &layer.StaticConfig{
			Settings: core.Settings{Root: root},
			Collections: []layer.Collection{
				{Name: "posts", Loader: loaders.Glob(loaders.GlobOptions{Pattern: "*.md", Base: "posts"})},
				{Name: "authors", Loader: core.NewLoader("authors", func(context.Context, *core.LoaderContext) error {
					authorLoads.Add(1)
					return nil
				})},
			},
		},
		Logger:        logger,
		Watch:         true,
		WatchDebounce: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Shutdown(context.Background()) })

	require.NoError(t, l.Sync(context.Background(), layer.SyncOptions{}))
	require.Eventually(t, func() bool {
		state := l.State().(layer.LayerState)
		return len(state.Watching) > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(posts, "b.md"), []byte("# B\n"), 0o644))

	completed := 0
	timeout := time.After(3 * time.Second)
	for completed < 2 {
		select {
		case e := <-l.Events():
			if e.Type == core.SyncCompleted {
				completed++
				if completed == 2 {
					assert.Equal(t, []string{"posts"}, e.Collections)
				}
			}
		case <-timeout:
			t.Fatal("timeout waiting for the watch-triggered sync")
		}
	}
	assert.True(t, l.Store().Has("posts", "b"))
	assert.Equal(t, int32(1), authorLoads.Load(), "only the collection owning the changed path is re-synced")
}
