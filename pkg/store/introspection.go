package store

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Collections map[string]int `json:"collections"`
	MetaKeys    int            `json:"meta_keys"`
	Dirty       bool           `json:"dirty"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	counts := make(map[string]int, len(s.names))
	for _, n := range s.names {
		counts[n] = s.Len(n)
	}
	return StoreState{
		Collections: counts,
		MetaKeys:    len(s.meta),
		Dirty:       s.dirty,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "data-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
