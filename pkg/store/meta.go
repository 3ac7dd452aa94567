package store

import (
	"sort"
	"strings"

	"github.com/aretw0/contentlayer/pkg/core"
)

const metaSeparator = "::"

// MetaStore is a view over the store's flat metadata map. A scoped view
// prefixes every key with its collection name.
type MetaStore struct {
	store  *Store
	prefix string
}

var _ core.MetaStore = (*MetaStore)(nil)

func (m *MetaStore) Get(key string) (string, bool) {
	v, ok := m.store.meta[m.prefix+key]
	return v, ok
}

func (m *MetaStore) Set(key, value string) {
	if prev, ok := m.store.meta[m.prefix+key]; ok && prev == value {
		return
	}
	m.store.meta[m.prefix+key] = value
	m.store.dirty = true
}

func (m *MetaStore) Has(key string) bool {
	_, ok := m.store.meta[m.prefix+key]
	return ok
}

func (m *MetaStore) Delete(key string) {
	if _, ok := m.store.meta[m.prefix+key]; ok {
		delete(m.store.meta, m.prefix+key)
		m.store.dirty = true
	}
}

// Keys returns the keys visible through this view, sorted.
func (m *MetaStore) Keys() []string {
	var keys []string
	for k := range m.store.meta {
		if m.prefix == "" {
			keys = append(keys, k)
			continue
		}
		if strings.HasPrefix(k, m.prefix) {
			keys = append(keys, strings.TrimPrefix(k, m.prefix))
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *MetaStore) clear() {
	for _, k := range m.Keys() {
		m.Delete(k)
	}
}
