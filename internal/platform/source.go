package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/contentlayer/internal/config"
	"github.com/aretw0/contentlayer/pkg/adapters/markdown"
	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/layer"
	"github.com/aretw0/contentlayer/pkg/loaders"
)

// FileSource resolves the configuration from the project's configuration
// file. The file is read again on every Resolve so edits apply to the next
// sync.
type FileSource struct {
	Root string
	// File, when set, is read instead of searching Root.
	File string
	// Collections are defined in code and appended to the file's.
	Collections []layer.Collection

	// onSettings is told about the settings of each resolved configuration.
	onSettings func(core.Settings)
}

var _ layer.ConfigSource = (*FileSource)(nil)

func (s *FileSource) load() (*config.Project, error) {
	if s.File != "" {
		return config.Load(s.File)
	}
	return config.LoadDir(s.Root)
}

// Resolve implements layer.ConfigSource.
func (s *FileSource) Resolve(ctx context.Context) (*layer.ResolvedConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.load()
	if err != nil {
		return nil, err
	}

	cfg := &layer.ResolvedConfig{
		Settings:      p.Settings,
		BuildConfig:   p.BuildConfig,
		DataStoreFile: p.DataStoreFile,
	}
	for _, spec := range p.Collections {
		loader, err := BuildLoader(spec.Loader)
		if err != nil {
			return nil, fmt.Errorf("%w: collection %q: %v", core.ErrConfig, spec.Name, err)
		}
		cfg.Collections = append(cfg.Collections, layer.Collection{
			Name:   spec.Name,
			Schema: spec.Schema,
			Loader: loader,
		})
	}
	cfg.Collections = append(cfg.Collections, s.Collections...)

	// Collections from code have no bytes to hash; the per-collection
	// digests cover them instead.
	if len(s.Collections) == 0 && len(p.Raw) > 0 {
		cfg.ContentDigest = layer.Digest(p.Raw)
	}

	if s.onSettings != nil {
		s.onSettings(p.Settings)
	}
	return cfg, nil
}

// BuildLoader creates one of the built-in loaders from its declaration.
func BuildLoader(spec config.LoaderSpec) (core.Loader, error) {
	switch spec.Type {
	case config.LoaderGlob:
		return loaders.Glob(loaders.GlobOptions{
			Patterns:   spec.Pattern,
			Base:       spec.Base,
			RetainBody: spec.RetainBody,
		}), nil
	case config.LoaderFile:
		return loaders.File(spec.Path), nil
	default:
		return nil, fmt.Errorf("unknown loader type %q", spec.Type)
	}
}

// settingsRenderer renders with a goldmark renderer matching the markdown
// settings of the last resolved configuration.
type settingsRenderer struct {
	mu       sync.Mutex
	settings core.MarkdownSettings
	r        *markdown.Renderer
}

var _ core.Renderer = (*settingsRenderer)(nil)

func (r *settingsRenderer) configure(s core.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.r == nil || r.settings != s.Markdown {
		r.settings = s.Markdown
		r.r = markdown.New(s.Markdown)
	}
}

func (r *settingsRenderer) Render(ctx context.Context, source string, opts core.RenderOptions) (*core.Rendered, error) {
	r.mu.Lock()
	md := r.r
	r.mu.Unlock()
	if md == nil {
		md = markdown.New(config.DefaultMarkdown())
	}
	return md.Render(ctx, source, opts)
}
