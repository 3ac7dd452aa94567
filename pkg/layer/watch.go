package layer

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/contentlayer/pkg/adapters/fs"
	"github.com/aretw0/contentlayer/pkg/core"
)

// collectionWatcher is the registrar handed to one collection's loader.
type collectionWatcher struct {
	layer      *ContentLayer
	collection string
	watcher    *fs.Watcher
}

var _ core.Watcher = (*collectionWatcher)(nil)

func (w *collectionWatcher) Add(paths ...string) error {
	w.layer.register(w.collection, paths)
	return w.watcher.Add(paths...)
}

func (l *ContentLayer) register(collection string, paths []string) {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		owners := l.watchers[abs]
		found := false
		for _, c := range owners {
			if c == collection {
				found = true
				break
			}
		}
		if !found {
			l.watchers[abs] = append(owners, collection)
		}
	}
}

func (l *ContentLayer) ensureWatcher() (*fs.Watcher, error) {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	if l.watcher != nil {
		return l.watcher, nil
	}

	w, err := fs.NewWatcher(fs.WatcherConfig{
		Logger:   l.logger,
		Debounce: l.config.WatchDebounce,
		OnChange: l.onChange,
		ErrorHandler: func(err error) {
			l.logger.Warn("watcher error", "error", err)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(l.bgCtx); err != nil {
		return nil, err
	}
	l.watcher = w
	return w, nil
}

// collectionsFor maps changed paths to the collections that registered them.
func (l *ContentLayer) collectionsFor(paths []string) []string {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()

	set := make(map[string]bool)
	for _, changed := range paths {
		for registered, owners := range l.watchers {
			if changed == registered || strings.HasPrefix(changed, registered+string(filepath.Separator)) {
				for _, c := range owners {
					set[c] = true
				}
			}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (l *ContentLayer) onChange(paths []string) {
	collections := l.collectionsFor(paths)
	if len(collections) == 0 {
		return
	}
	l.logger.Info("content changed", "collections", collections, "paths", len(paths))
	l.RequestSync(SyncOptions{
		Collections: collections,
		Context:     map[string]any{"changedPaths": paths},
	})
}
