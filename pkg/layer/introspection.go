package layer

import (
	"time"

	"github.com/aretw0/introspection"
)

// LayerState exposes internal state for observability.
type LayerState struct {
	Syncing       bool      `json:"syncing"`
	DataStoreFile string    `json:"data_store_file,omitempty"`
	Watching      []string  `json:"watching,omitempty"`
	LastRunID     string    `json:"last_run_id,omitempty"`
	LastRunAt     time.Time `json:"last_run_at,omitempty"`
	LastDuration  string    `json:"last_duration,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// State implements introspection.Introspectable. It does not touch the store,
// so it is safe to call while a pass runs.
func (l *ContentLayer) State() any {
	state := LayerState{Syncing: l.IsSyncing()}

	l.watchMu.Lock()
	if l.watcher != nil {
		state.Watching = l.watcher.Targets()
	}
	l.watchMu.Unlock()

	l.stateMu.Lock()
	if r := l.lastRun; r != nil {
		state.LastRunID = r.ID
		state.LastRunAt = r.Started
		state.LastDuration = r.Duration.String()
		state.DataStoreFile = r.Path
		if r.Err != nil {
			state.LastError = r.Err.Error()
		}
	}
	l.stateMu.Unlock()
	return state
}

// ComponentType implements introspection.Component.
func (l *ContentLayer) ComponentType() string {
	return "content-layer"
}

var _ introspection.Introspectable = (*ContentLayer)(nil)
var _ introspection.Component = (*ContentLayer)(nil)
