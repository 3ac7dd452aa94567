package core

import (
	"context"
	"log/slog"
	"net/url"
)

// Loader populates a single collection by writing through the scoped store
// of the LoaderContext it receives.
type Loader interface {
	// Name labels the loader in logs and sync filters.
	Name() string
	// Load runs one pass. A returned error fails the sync but not sibling loaders.
	Load(ctx context.Context, lc *LoaderContext) error
}

// Digester is implemented by loaders whose options should take part in the
// content configuration digest.
type Digester interface {
	Digest() string
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc struct {
	LoaderName string
	Fn         func(ctx context.Context, lc *LoaderContext) error
}

// NewLoader creates a Loader from a function.
func NewLoader(name string, fn func(ctx context.Context, lc *LoaderContext) error) LoaderFunc {
	return LoaderFunc{LoaderName: name, Fn: fn}
}

func (l LoaderFunc) Name() string { return l.LoaderName }

func (l LoaderFunc) Load(ctx context.Context, lc *LoaderContext) error {
	return l.Fn(ctx, lc)
}

// ScopedStore is a store handle bound to one collection.
type ScopedStore interface {
	Get(id string) (Entry, bool)
	// Set inserts or overwrites an entry and reports whether one already existed.
	Set(e Entry) (existed bool, err error)
	Has(id string) bool
	Delete(id string)
	Keys() []string
	Values() []Entry
	Clear()
}

// MetaStore is a flat string mapping used for sync bookkeeping.
type MetaStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Has(key string) bool
	Delete(key string)
	Keys() []string
}

// Watcher registers filesystem paths a loader wants to be notified about.
type Watcher interface {
	Add(paths ...string) error
}

// ParseInput is the raw material handed to ParseData.
type ParseInput struct {
	ID       string
	Data     map[string]any
	FilePath string
}

// RenderOptions are passed through to the Renderer.
type RenderOptions struct {
	FileURL     *url.URL
	Frontmatter map[string]any
}

// Renderer is the markdown rendering collaborator.
type Renderer interface {
	Render(ctx context.Context, source string, opts RenderOptions) (*Rendered, error)
}

// MarkdownSettings are the rendering options that take part in the build digest.
type MarkdownSettings struct {
	GFM           bool `json:"gfm" yaml:"gfm"`
	Typographer   bool `json:"typographer" yaml:"typographer"`
	HardWraps     bool `json:"hardWraps" yaml:"hardWraps"`
	UnsafeHTML    bool `json:"unsafeHTML" yaml:"unsafeHTML"`
	AutoHeadingID bool `json:"autoHeadingID" yaml:"autoHeadingID"`
}

// Settings is the read-only view of the resolved project configuration.
type Settings struct {
	Root     string           `json:"root"`
	SrcDir   string           `json:"srcDir"`
	CacheDir string           `json:"cacheDir"`
	Markdown MarkdownSettings `json:"markdown"`
}

// LoaderContext is the capability bundle handed to each loader invocation.
type LoaderContext struct {
	Collection string
	Store      ScopedStore
	// Meta is namespaced to the collection.
	Meta           MetaStore
	ParseData      func(in ParseInput) (Data, error)
	RenderMarkdown func(ctx context.Context, source string, opts RenderOptions) (*Rendered, error)
	GenerateDigest func(v any) string
	Logger         *slog.Logger
	// Watcher is nil in one-shot (build) mode.
	Watcher  Watcher
	Settings Settings
	// RefreshContext carries caller data for targeted refreshes.
	RefreshContext map[string]any
}
