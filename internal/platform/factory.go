package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/aretw0/contentlayer/pkg/layer"
)

// New creates a content layer for the project rooted at root.
// An empty root is searched upwards from the working directory.
//
//	cl, err := platform.New("./site", platform.WithWatch(true))
func New(root string, opts ...Option) (*layer.ContentLayer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	source := &FileSource{
		Root:        root,
		File:        o.configFile,
		Collections: o.collections,
	}

	renderer := o.renderer
	if renderer == nil {
		md := &settingsRenderer{}
		source.onSettings = md.configure
		renderer = md
	}

	return layer.New(layer.Config{
		Source:        source,
		DataStoreFile: o.dataStoreFile,
		Renderer:      renderer,
		Logger:        o.logger,
		Watch:         o.watch,
		WatchDebounce: o.watchDebounce,
		EventBuffer:   o.eventBuffer,
	})
}

// Sync runs a single pass over the project and releases the layer.
func Sync(ctx context.Context, root string, syncOpts layer.SyncOptions, opts ...Option) error {
	cl, err := New(root, append(opts, WithWatch(false))...)
	if err != nil {
		return err
	}
	syncErr := cl.Sync(ctx, syncOpts)
	return errors.Join(syncErr, cl.Shutdown(context.Background()))
}

func resolveRoot(root string) (string, error) {
	if root != "" {
		return filepath.Abs(root)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, err := FindRoot(wd); err == nil {
		return found, nil
	}
	return wd, nil
}
