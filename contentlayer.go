package contentlayer

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/contentlayer/internal/platform"
	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/layer"
	"github.com/aretw0/contentlayer/pkg/typed"
)

// Version of the sync engine.
const Version = core.Version

// --- Types ---

// ContentLayer is a public alias for the sync orchestrator.
type ContentLayer = layer.ContentLayer

// Collection pairs a name with its schema and loader.
type Collection = layer.Collection

// SyncOptions tune a single sync pass.
type SyncOptions = layer.SyncOptions

// Entry is a public alias for a stored entry.
type Entry = core.Entry

// TypedEntry is an entry whose data was decoded into T.
type TypedEntry[T any] = typed.Entry[T]

// TypedCollection reads one collection as T.
type TypedCollection[T any] = typed.Collection[T]

// --- Configuration ---

// Option defines a functional option for configuring a content layer.
type Option = platform.Option

// WithLogger sets the logger for the layer and its loaders.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithConfigFile reads the configuration from path instead of searching the root.
func WithConfigFile(path string) Option {
	return platform.WithConfigFile(path)
}

// WithCollections adds collections defined in code.
func WithCollections(collections ...Collection) Option {
	return platform.WithCollections(collections...)
}

// WithDataStoreFile overrides where the data store document is written.
func WithDataStoreFile(path string) Option {
	return platform.WithDataStoreFile(path)
}

// WithRenderer replaces the default markdown renderer.
func WithRenderer(r core.Renderer) Option {
	return platform.WithRenderer(r)
}

// WithWatch enables re-syncing on file changes.
func WithWatch(enabled bool) Option {
	return platform.WithWatch(enabled)
}

// WithWatchDebounce sets the quiet period before a change triggers a sync.
func WithWatchDebounce(d time.Duration) Option {
	return platform.WithWatchDebounce(d)
}

// WithEventBuffer sets the capacity of the sync event channel.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// --- Factory ---

// New creates a content layer for the project rooted at root.
func New(root string, opts ...Option) (*ContentLayer, error) {
	return platform.New(root, opts...)
}

// Sync runs a single pass over the project at root.
func Sync(ctx context.Context, root string, syncOpts SyncOptions, opts ...Option) error {
	return platform.Sync(ctx, root, syncOpts, opts...)
}

// FindRoot looks upwards from startDir for a project root.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// --- Typed Access ---

// NewTypedCollection reads the named collection of a layer's store as T.
// The layer must have completed a sync.
func NewTypedCollection[T any](cl *ContentLayer, name string) *TypedCollection[T] {
	return typed.NewCollection[T](cl.Store(), name)
}
