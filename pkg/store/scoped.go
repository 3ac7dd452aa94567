package store

import (
	"fmt"

	"github.com/aretw0/contentlayer/pkg/core"
)

// ScopedStore is a store handle bound to one collection. It is what loaders see.
type ScopedStore struct {
	store      *Store
	collection string
}

var _ core.ScopedStore = (*ScopedStore)(nil)

// Collection returns the name the handle is bound to.
func (s *ScopedStore) Collection() string {
	return s.collection
}

func (s *ScopedStore) Get(id string) (core.Entry, bool) {
	return s.store.Get(s.collection, id)
}

// Set stores e under e.ID. When e carries a digest equal to the stored
// entry's digest the write is skipped; existed is still true.
func (s *ScopedStore) Set(e core.Entry) (bool, error) {
	if e.ID == "" {
		return false, fmt.Errorf("collection %q: %w", s.collection, core.ErrInvalidID)
	}
	if prev, ok := s.store.Get(s.collection, e.ID); ok && e.Digest != "" && prev.Digest == e.Digest {
		return true, nil
	}
	return s.store.Set(s.collection, e.ID, e), nil
}

func (s *ScopedStore) Has(id string) bool {
	return s.store.Has(s.collection, id)
}

func (s *ScopedStore) Delete(id string) {
	s.store.Delete(s.collection, id)
}

func (s *ScopedStore) Keys() []string {
	return s.store.Keys(s.collection)
}

func (s *ScopedStore) Values() []core.Entry {
	return s.store.Values(s.collection)
}

// Clear removes every entry of the collection. Loader-scoped metadata is kept.
func (s *ScopedStore) Clear() {
	for _, id := range s.store.Keys(s.collection) {
		s.store.Delete(s.collection, id)
	}
}
