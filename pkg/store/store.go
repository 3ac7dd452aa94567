// Package store implements the mutable data store: an in-memory mapping of
// (collection, id) to entries plus a flat metadata map, serializable to a
// single JSON document.
//
// The store performs no locking. Callers serialize writers; the content layer
// runs one loader at a time against a single Store.
package store

import (
	"github.com/aretw0/contentlayer/pkg/core"
)

// collection is an insertion-ordered map of entries.
type collection struct {
	order   []string
	entries map[string]core.Entry
}

func newCollection() *collection {
	return &collection{entries: make(map[string]core.Entry)}
}

func (c *collection) set(id string, e core.Entry) bool {
	_, existed := c.entries[id]
	if !existed {
		c.order = append(c.order, id)
	}
	c.entries[id] = e
	return existed
}

func (c *collection) delete(id string) bool {
	if _, ok := c.entries[id]; !ok {
		return false
	}
	delete(c.entries, id)
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Store is the mutable data store.
type Store struct {
	names       []string
	collections map[string]*collection
	meta        map[string]string
	dirty       bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		meta:        make(map[string]string),
	}
}

func (s *Store) collection(name string, create bool) *collection {
	c, ok := s.collections[name]
	if !ok && create {
		c = newCollection()
		s.collections[name] = c
		s.names = append(s.names, name)
	}
	return c
}

// Set inserts or overwrites an entry and reports whether one with that id
// already existed. An overwritten entry keeps its original position.
func (s *Store) Set(collectionName, id string, e core.Entry) bool {
	e.ID = id
	e.Collection = collectionName
	if e.Data == nil {
		e.Data = core.Data{}
	}
	s.dirty = true
	return s.collection(collectionName, true).set(id, e)
}

// Get returns the entry stored under (collection, id).
func (s *Store) Get(collectionName, id string) (core.Entry, bool) {
	c := s.collection(collectionName, false)
	if c == nil {
		return core.Entry{}, false
	}
	e, ok := c.entries[id]
	return e, ok
}

// Has reports whether (collection, id) is present.
func (s *Store) Has(collectionName, id string) bool {
	_, ok := s.Get(collectionName, id)
	return ok
}

// Delete removes an entry. It is a no-op when the entry is absent.
func (s *Store) Delete(collectionName, id string) {
	c := s.collection(collectionName, false)
	if c == nil {
		return
	}
	if c.delete(id) {
		s.dirty = true
	}
}

// Values returns a point-in-time copy of the entries of a collection in
// insertion order.
func (s *Store) Values(collectionName string) []core.Entry {
	c := s.collection(collectionName, false)
	if c == nil {
		return nil
	}
	out := make([]core.Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// Keys returns the ids of a collection in insertion order.
func (s *Store) Keys(collectionName string) []string {
	c := s.collection(collectionName, false)
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Len returns the number of entries in a collection.
func (s *Store) Len(collectionName string) int {
	c := s.collection(collectionName, false)
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Collections returns the collection names in creation order.
func (s *Store) Collections() []string {
	return append([]string(nil), s.names...)
}

// Scoped returns a handle whose operations are bound to one collection.
func (s *Store) Scoped(collectionName string) *ScopedStore {
	return &ScopedStore{store: s, collection: collectionName}
}

// ClearAll wipes every collection and the metadata map.
func (s *Store) ClearAll() {
	s.names = nil
	s.collections = make(map[string]*collection)
	s.meta = make(map[string]string)
	s.dirty = true
}

// Clear wipes a single collection together with its loader-scoped metadata.
func (s *Store) Clear(collectionName string) {
	if _, ok := s.collections[collectionName]; ok {
		delete(s.collections, collectionName)
		for i, n := range s.names {
			if n == collectionName {
				s.names = append(s.names[:i], s.names[i+1:]...)
				break
			}
		}
	}
	s.ScopedMetaStore(collectionName).clear()
	s.dirty = true
}

// MetaStore returns the global metadata map.
func (s *Store) MetaStore() *MetaStore {
	return &MetaStore{store: s}
}

// ScopedMetaStore returns a metadata handle whose keys are namespaced to a collection.
func (s *Store) ScopedMetaStore(collectionName string) *MetaStore {
	return &MetaStore{store: s, prefix: collectionName + metaSeparator}
}

// Dirty reports whether the store changed since it was loaded or last written.
func (s *Store) Dirty() bool {
	return s.dirty
}
