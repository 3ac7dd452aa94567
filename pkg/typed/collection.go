// Package typed decodes entry data into Go structs.
package typed

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/contentlayer/pkg/core"
)

// Entry is a typed view of a core.Entry.
type Entry[T any] struct {
	ID         string
	Collection string
	Data       T
	Body       string
	FilePath   string
	Rendered   *core.Rendered
}

// Reader is the read side of a data store.
type Reader interface {
	Get(collection, id string) (core.Entry, bool)
	Values(collection string) []core.Entry
}

// Collection reads one collection as T.
type Collection[T any] struct {
	reader Reader
	name   string
}

// NewCollection creates a typed reader for the named collection.
func NewCollection[T any](r Reader, name string) *Collection[T] {
	return &Collection[T]{reader: r, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Get decodes one entry.
func (c *Collection[T]) Get(id string) (*Entry[T], error) {
	e, ok := c.reader.Get(c.name, id)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", c.name, id, core.ErrNotFound)
	}
	return Decode[T](e)
}

// List decodes every entry in store order.
func (c *Collection[T]) List() ([]*Entry[T], error) {
	return c.Filter(nil)
}

// Filter decodes every entry and keeps those accepted by keep. A nil keep accepts all.
func (c *Collection[T]) Filter(keep func(*Entry[T]) bool) ([]*Entry[T], error) {
	values := c.reader.Values(c.name)
	out := make([]*Entry[T], 0, len(values))
	for _, e := range values {
		typed, err := Decode[T](e)
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(typed) {
			out = append(out, typed)
		}
	}
	return out, nil
}

// Resolve follows a reference produced by a schema reference field.
func Resolve[T any](r Reader, ref core.Reference) (*Entry[T], error) {
	return NewCollection[T](r, ref.Collection).Get(ref.ID)
}

// Decode converts the data of e into T through its JSON form.
func Decode[T any](e core.Entry) (*Entry[T], error) {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: failed to marshal data: %w", e.Collection, e.ID, err)
	}
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%s/%s: failed to decode data: %w", e.Collection, e.ID, err)
	}
	return &Entry[T]{
		ID:         e.ID,
		Collection: e.Collection,
		Data:       data,
		Body:       e.Body,
		FilePath:   e.FilePath,
		Rendered:   e.Rendered,
	}, nil
}
