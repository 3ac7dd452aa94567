package fs

import (
	"github.com/aretw0/introspection"
)

// WatcherState exposes internal state for observability.
type WatcherState struct {
	Active   bool     `json:"active"`
	Targets  []string `json:"targets"`
	Debounce string   `json:"debounce"`
}

// State implements introspection.Introspectable.
func (w *Watcher) State() any {
	return WatcherState{
		Active:   w.Active(),
		Targets:  w.Targets(),
		Debounce: w.config.Debounce.String(),
	}
}

// ComponentType implements introspection.Component.
func (w *Watcher) ComponentType() string {
	return "fs-watcher"
}

var _ introspection.Introspectable = (*Watcher)(nil)
var _ introspection.Component = (*Watcher)(nil)
