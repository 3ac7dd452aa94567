package loaders

import (
	"context"
	"fmt"

	"github.com/aretw0/contentlayer/pkg/core"
)

// InlineLoader stores the records returned by a function.
type InlineLoader struct {
	name string
	fn   func(ctx context.Context) ([]map[string]any, error)
}

// Inline wraps a function returning records. Each record needs an "id" (or
// "slug"). The collection is replaced on every load.
func Inline(name string, fn func(ctx context.Context) ([]map[string]any, error)) *InlineLoader {
	return &InlineLoader{name: name, fn: fn}
}

var _ core.Loader = (*InlineLoader)(nil)

func (l *InlineLoader) Name() string { return l.name }

func (l *InlineLoader) Load(ctx context.Context, lc *core.LoaderContext) error {
	items, err := l.fn(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", l.name, err)
	}
	records, err := recordsFrom(items)
	if err != nil {
		return err
	}

	lc.Store.Clear()
	in := &ingester{lc: lc, logger: loggerOf(lc)}
	for i, r := range records {
		in.put(r, i)
	}
	return nil
}
