package loaders_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/contentlayer/internal/testutil"
	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/layer"
	"github.com/aretw0/contentlayer/pkg/schema"
	"github.com/aretw0/contentlayer/pkg/store"
)

type harness struct {
	root  string
	store *store.Store
	logs  *testutil.LogBuffer
	opts  layer.ContextOptions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, logs := testutil.NewLogger()
	root := t.TempDir()
	return &harness{
		root:  root,
		store: store.New(),
		logs:  logs,
		opts:  layer.ContextOptions{Logger: logger, Settings: core.Settings{Root: root}},
	}
}

func (h *harness) write(t *testing.T, rel, contents string) {
	t.Helper()
	path := filepath.Join(h.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(contents, "\n")), 0644))
}

func (h *harness) load(t *testing.T, name string, s *schema.Schema, loader core.Loader) error {
	t.Helper()
	lc := layer.NewLoaderContext(h.store, layer.Collection{Name: name, Schema: s, Loader: loader}, h.opts)
	return loader.Load(context.Background(), lc)
}

type fakeRenderer struct {
	calls int
}

func (r *fakeRenderer) Render(_ context.Context, source string, opts core.RenderOptions) (*core.Rendered, error) {
	r.calls++
	return &core.Rendered{
		HTML: "<p>" + strings.TrimSpace(source) + "</p>",
		Metadata: core.RenderMetadata{
			Frontmatter:     opts.Frontmatter,
			LocalImagePaths: []string{"./cover.png"},
		},
	}, nil
}

type recordingWatcher struct {
	paths []string
}

func (w *recordingWatcher) Add(paths ...string) error {
	w.paths = append(w.paths, paths...)
	return nil
}
