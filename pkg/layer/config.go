package layer

import (
	"context"
	"fmt"

	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/schema"
)

// Collection pairs a name with its schema and loader.
type Collection struct {
	Name string
	// Schema is optional. When set it must describe an object.
	Schema *schema.Schema
	Loader core.Loader
}

// ResolvedConfig is the configuration active for one sync pass.
type ResolvedConfig struct {
	Collections []Collection
	Settings    core.Settings
	// BuildConfig holds extra build options that invalidate the store when changed.
	BuildConfig map[string]any
	// ContentDigest, when set, replaces the digest computed from the collections.
	// File-backed sources use the bytes of the configuration file.
	ContentDigest string
	// DataStoreFile is used when Config.DataStoreFile is empty.
	DataStoreFile string
}

// ConfigSource supplies the configuration for each sync.
type ConfigSource interface {
	Resolve(ctx context.Context) (*ResolvedConfig, error)
}

// ConfigFunc adapts a function to ConfigSource.
type ConfigFunc func(ctx context.Context) (*ResolvedConfig, error)

func (f ConfigFunc) Resolve(ctx context.Context) (*ResolvedConfig, error) {
	return f(ctx)
}

// StaticConfig is a ConfigSource that always returns the same configuration.
type StaticConfig ResolvedConfig

func (c *StaticConfig) Resolve(context.Context) (*ResolvedConfig, error) {
	cfg := ResolvedConfig(*c)
	return &cfg, nil
}

// Validate checks names, loaders and schemas.
func (c *ResolvedConfig) Validate() error {
	seen := make(map[string]bool, len(c.Collections))
	for i, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("%w: collection #%d has no name", core.ErrConfig, i)
		}
		if seen[col.Name] {
			return fmt.Errorf("%w: collection %q is defined twice", core.ErrConfig, col.Name)
		}
		seen[col.Name] = true
		if col.Loader == nil {
			return fmt.Errorf("%w: collection %q has no loader", core.ErrConfig, col.Name)
		}
		if col.Schema == nil {
			continue
		}
		if col.Schema.Type != schema.KindObject {
			return fmt.Errorf("%w: collection %q: schema must be an object, got %q", core.ErrConfig, col.Name, col.Schema.Type)
		}
		if err := col.Schema.Validate(); err != nil {
			return fmt.Errorf("%w: collection %q: %v", core.ErrConfig, col.Name, err)
		}
	}
	return nil
}

// Collection returns the named collection.
func (c *ResolvedConfig) Collection(name string) (Collection, bool) {
	for _, col := range c.Collections {
		if col.Name == name {
			return col, true
		}
	}
	return Collection{}, false
}

func (c *ResolvedConfig) contentDigest() string {
	if c.ContentDigest != "" {
		return c.ContentDigest
	}
	parts := make([]string, 0, len(c.Collections))
	for _, col := range c.Collections {
		parts = append(parts, col.Name+"="+collectionDigest(col))
	}
	return Digest(parts)
}

func (c *ResolvedConfig) buildDigest() string {
	return Digest(map[string]any{
		"settings": c.Settings,
		"build":    c.BuildConfig,
	})
}

// collectionDigest covers the schema and loader options of one collection.
func collectionDigest(col Collection) string {
	loader := ""
	if col.Loader != nil {
		loader = col.Loader.Name()
		if d, ok := col.Loader.(core.Digester); ok {
			loader += ":" + d.Digest()
		}
	}
	return Digest([]string{col.Schema.Digest(), loader})
}
