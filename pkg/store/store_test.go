package store_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/contentlayer/pkg/core"
	"github.com/aretw0/contentlayer/pkg/store"
)

func TestStore_SetGetOverwrite(t *testing.T) {
	s := store.New()

	existed := s.Set("dogs", "beagle", core.Entry{Data: core.Data{"breed": "Beagle"}})
	assert.False(t, existed)
	s.Set("dogs", "lab", core.Entry{Data: core.Data{"breed": "Lab"}})

	existed = s.Set("dogs", "beagle", core.Entry{Data: core.Data{"breed": "Pocket Beagle"}})
	assert.True(t, existed)

	e, ok := s.Get("dogs", "beagle")
	require.True(t, ok)
	assert.Equal(t, "beagle", e.ID)
	assert.Equal(t, "dogs", e.Collection)
	assert.Equal(t, "Pocket Beagle", e.Data["breed"])

	// Overwrite keeps the original position.
	assert.Equal(t, []string{"beagle", "lab"}, s.Keys("dogs"))
}

func TestStore_DeleteIsNoopWhenAbsent(t *testing.T) {
	s := store.New()
	s.Delete("dogs", "ghost")
	assert.False(t, s.Dirty())

	s.Set("dogs", "a", core.Entry{})
	s.Set("dogs", "b", core.Entry{})
	s.Delete("dogs", "a")
	assert.Equal(t, []string{"b"}, s.Keys("dogs"))
	assert.False(t, s.Has("dogs", "a"))
}

func TestStore_ValuesIsSnapshot(t *testing.T) {
	s := store.New()
	s.Set("dogs", "a", core.Entry{})
	values := s.Values("dogs")
	s.Set("dogs", "b", core.Entry{})

	assert.Len(t, values, 1)
	assert.Len(t, s.Values("dogs"), 2)
	assert.Nil(t, s.Values("cats"))
}

func TestStore_ClearAndClearAll(t *testing.T) {
	s := store.New()
	s.Set("dogs", "a", core.Entry{})
	s.Set("cats", "b", core.Entry{})
	s.MetaStore().Set("content-config-digest", "x")
	s.ScopedMetaStore("dogs").Set("last-modified", "yesterday")
	s.ScopedMetaStore("cats").Set("last-modified", "today")

	s.Clear("dogs")
	assert.Equal(t, []string{"cats"}, s.Collections())
	assert.False(t, s.ScopedMetaStore("dogs").Has("last-modified"))
	assert.True(t, s.ScopedMetaStore("cats").Has("last-modified"))
	assert.True(t, s.MetaStore().Has("content-config-digest"))

	s.ClearAll()
	assert.Empty(t, s.Collections())
	assert.Empty(t, s.MetaStore().Keys())
}

func TestScopedStore(t *testing.T) {
	s := store.New()
	dogs := s.Scoped("dogs")

	existed, err := dogs.Set(core.Entry{ID: "beagle", Data: core.Data{"breed": "Beagle"}, Digest: "d1"})
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "dogs", dogs.Collection())

	_, err = dogs.Set(core.Entry{})
	assert.True(t, errors.Is(err, core.ErrInvalidID))

	// Same digest: write skipped but reported as existing.
	existed, err = dogs.Set(core.Entry{ID: "beagle", Data: core.Data{"breed": "changed"}, Digest: "d1"})
	require.NoError(t, err)
	assert.True(t, existed)
	e, _ := dogs.Get("beagle")
	assert.Equal(t, "Beagle", e.Data["breed"])

	existed, err = dogs.Set(core.Entry{ID: "beagle", Data: core.Data{"breed": "changed"}, Digest: "d2"})
	require.NoError(t, err)
	assert.True(t, existed)
	e, _ = dogs.Get("beagle")
	assert.Equal(t, "changed", e.Data["breed"])

	assert.False(t, s.Has("cats", "beagle"), "scoped writes must not leak into other collections")

	s.ScopedMetaStore("dogs").Set("cursor", "1")
	dogs.Clear()
	assert.Empty(t, dogs.Keys())
	assert.True(t, s.ScopedMetaStore("dogs").Has("cursor"))
}

func TestMetaStore_Scoping(t *testing.T) {
	s := store.New()
	global := s.MetaStore()
	scoped := s.ScopedMetaStore("posts")

	global.Set("build-config-digest", "abc")
	scoped.Set("etag", "v1")

	v, ok := scoped.Get("etag")
	require.True(t, ok)
	assert.Equal(t, "v1", v)
	assert.Equal(t, []string{"etag"}, scoped.Keys())
	assert.Equal(t, []string{"build-config-digest", "posts::etag"}, global.Keys())

	scoped.Delete("etag")
	assert.False(t, global.Has("posts::etag"))
}

func TestStore_State(t *testing.T) {
	s := store.New()
	s.Set("dogs", "a", core.Entry{})
	s.MetaStore().Set("k", "v")

	state, ok := s.State().(store.StoreState)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"dogs": 1}, state.Collections)
	assert.Equal(t, 1, state.MetaKeys)
	assert.True(t, state.Dirty)
	assert.Equal(t, "data-store", s.ComponentType())
}
