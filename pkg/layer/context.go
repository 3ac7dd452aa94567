package layer

import (
	"context"
	"log/slog"

	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/schema"
	"github.com/aretw0/contentlayer/pkg/store"
)

// ContextOptions are the collaborators bound into a LoaderContext.
type ContextOptions struct {
	Renderer       core.Renderer
	Logger         *slog.Logger
	Watcher        core.Watcher
	Settings       core.Settings
	RefreshContext map[string]any
}

// NewLoaderContext builds the capability bundle for one collection. Sync uses
// it for every loader; it is exported so loaders can be exercised against a
// store directly.
func NewLoaderContext(s *store.Store, col Collection, opts ContextOptions) *core.LoaderContext {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loaderName := ""
	if col.Loader != nil {
		loaderName = col.Loader.Name()
	}

	renderer := opts.Renderer
	return &core.LoaderContext{
		Collection: col.Name,
		Store:      s.Scoped(col.Name),
		Meta:       s.ScopedMetaStore(col.Name),
		ParseData: func(in core.ParseInput) (core.Data, error) {
			return schema.ParseData(col.Name, schema.Input{ID: in.ID, Data: in.Data, FilePath: in.FilePath}, col.Schema)
		},
		RenderMarkdown: func(ctx context.Context, source string, ro core.RenderOptions) (*core.Rendered, error) {
			if renderer == nil {
				return nil, core.ErrNoRenderer
			}
			return renderer.Render(ctx, source, ro)
		},
		GenerateDigest: Digest,
		Logger:         logger.With("collection", col.Name, "loader", loaderName),
		Watcher:        opts.Watcher,
		Settings:       opts.Settings,
		RefreshContext: opts.RefreshContext,
	}
}
