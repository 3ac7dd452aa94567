package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/layer"
)

// options holds the internal configuration for a content layer.
type options struct {
	logger        *slog.Logger
	configFile    string
	collections   []layer.Collection
	dataStoreFile string
	renderer      core.Renderer
	watch         bool
	watchDebounce time.Duration
	eventBuffer   int
}

// Option defines a functional option for configuring a content layer.
type Option func(*options)

func defaultOptions() *options {
	return &options{}
}

// WithLogger sets the logger for the layer and its loaders.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConfigFile reads the configuration from path instead of searching
// the project root.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configFile = path
	}
}

// WithCollections adds collections defined in code. They are merged with
// those of the configuration file; a name defined in both is an error.
func WithCollections(collections ...layer.Collection) Option {
	return func(o *options) {
		o.collections = append(o.collections, collections...)
	}
}

// WithDataStoreFile overrides where the data store document is written.
func WithDataStoreFile(path string) Option {
	return func(o *options) {
		o.dataStoreFile = path
	}
}

// WithRenderer replaces the default goldmark renderer.
func WithRenderer(r core.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// WithWatch re-syncs affected collections when their files change.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}

// WithWatchDebounce sets the quiet period before a change triggers a sync.
func WithWatchDebounce(d time.Duration) Option {
	return func(o *options) {
		o.watchDebounce = d
	}
}

// WithEventBuffer sets the capacity of the sync event channel.
// Zero means default (16).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}
