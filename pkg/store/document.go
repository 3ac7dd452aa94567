package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/aretw0/contentlayer/pkg/core"
)

// DocumentVersion is the version written into every persisted document.
const DocumentVersion = 1

// Tags used to encode values JSON cannot represent natively.
const (
	tagDate = "$date"
	tagRef  = "$ref"
	tagMap  = "$map"
	tagNum  = "$num"
)

// Document is the persisted form of a Store.
type Document struct {
	Version     int                  `json:"version"`
	Collections []CollectionDocument `json:"collections"`
	Meta        map[string]string    `json:"meta"`
}

// CollectionDocument holds the entries of one collection in insertion order.
type CollectionDocument struct {
	Name    string          `json:"name"`
	Entries []EntryDocument `json:"entries"`
}

// EntryDocument is the persisted form of a core.Entry.
type EntryDocument struct {
	ID             string         `json:"id"`
	Data           map[string]any `json:"data"`
	Body           string         `json:"body,omitempty"`
	FilePath       string         `json:"filePath,omitempty"`
	Digest         string         `json:"digest,omitempty"`
	Rendered       *core.Rendered `json:"rendered,omitempty"`
	DeferredRender bool           `json:"deferredRender,omitempty"`
	AssetImports   []string       `json:"assetImports,omitempty"`
}

// ToDocument produces the persisted representation of the store.
func (s *Store) ToDocument() *Document {
	doc := &Document{
		Version:     DocumentVersion,
		Collections: make([]CollectionDocument, 0, len(s.names)),
		Meta:        make(map[string]string, len(s.meta)),
	}
	for k, v := range s.meta {
		doc.Meta[k] = v
	}
	for _, name := range s.names {
		cd := CollectionDocument{Name: name, Entries: []EntryDocument{}}
		for _, e := range s.Values(name) {
			cd.Entries = append(cd.Entries, EntryDocument{
				ID:             e.ID,
				Data:           encodeValue(e.Data).(map[string]any),
				Body:           e.Body,
				FilePath:       e.FilePath,
				Digest:         e.Digest,
				Rendered:       encodeRendered(e.Rendered),
				DeferredRender: e.DeferredRender,
				AssetImports:   e.AssetImports,
			})
		}
		doc.Collections = append(doc.Collections, cd)
	}
	return doc
}

// FromDocument reconstructs a Store from its persisted representation.
func FromDocument(doc *Document) (*Store, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", core.ErrInvalidDocument)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d (want %d)", core.ErrInvalidDocument, doc.Version, DocumentVersion)
	}

	s := New()
	for k, v := range doc.Meta {
		s.meta[k] = v
	}
	for _, cd := range doc.Collections {
		if cd.Name == "" {
			return nil, fmt.Errorf("%w: collection without a name", core.ErrInvalidDocument)
		}
		s.collection(cd.Name, true)
		for _, ed := range cd.Entries {
			if ed.ID == "" {
				return nil, fmt.Errorf("%w: entry without an id in collection %q", core.ErrInvalidDocument, cd.Name)
			}
			data, err := decodeMap(ed.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: %s/%s: %v", core.ErrInvalidDocument, cd.Name, ed.ID, err)
			}
			rendered, err := decodeRendered(ed.Rendered)
			if err != nil {
				return nil, fmt.Errorf("%w: %s/%s: %v", core.ErrInvalidDocument, cd.Name, ed.ID, err)
			}
			s.Set(cd.Name, ed.ID, core.Entry{
				Data:           data,
				Body:           ed.Body,
				FilePath:       ed.FilePath,
				Digest:         ed.Digest,
				Rendered:       rendered,
				DeferredRender: ed.DeferredRender,
				AssetImports:   ed.AssetImports,
			})
		}
	}
	s.dirty = false
	return s, nil
}

// Encode writes the store as an indented JSON document.
func (s *Store) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.ToDocument())
}

// Decode reads a JSON document produced by Encode.
func Decode(r io.Reader) (*Store, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidDocument, err)
	}
	return FromDocument(&doc)
}

func (s *Store) marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeRendered(r *core.Rendered) *core.Rendered {
	if r == nil {
		return nil
	}
	out := *r
	if r.Metadata.Frontmatter != nil {
		out.Metadata.Frontmatter = encodeValue(r.Metadata.Frontmatter).(map[string]any)
	}
	return &out
}

func decodeRendered(r *core.Rendered) (*core.Rendered, error) {
	if r == nil {
		return nil, nil
	}
	out := *r
	if r.Metadata.Frontmatter != nil {
		fm, err := decodeMap(r.Metadata.Frontmatter)
		if err != nil {
			return nil, err
		}
		out.Metadata.Frontmatter = fm
	}
	return &out, nil
}

func isTag(k string) bool {
	return k == tagDate || k == tagRef || k == tagMap || k == tagNum
}

// encodeValue rewrites values JSON cannot carry into tagged objects.
// Maps always encode to map[string]any.
func encodeValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, json.Number:
		return val
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return map[string]any{tagNum: strconv.FormatFloat(val, 'g', -1, 64)}
		}
		return val
	case float32:
		return encodeValue(float64(val))
	case time.Time:
		return map[string]any{tagDate: val.Format(time.RFC3339Nano)}
	case core.Reference:
		return map[string]any{tagRef: map[string]any{"collection": val.Collection, "id": val.ID}}
	case *core.Reference:
		if val == nil {
			return nil
		}
		return encodeValue(*val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = encodeValue(item)
		}
		if len(val) == 1 {
			for k := range val {
				if isTag(k) {
					return map[string]any{tagMap: out}
				}
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = encodeValue(item)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = encodeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeValue(m)
	}
	return v
}

func decodeMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return core.Data{}, nil
	}
	v, err := decodeValue(m)
	if err != nil {
		return nil, err
	}
	out, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
	return out, nil
}

func decodeValue(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 1 {
			if raw, ok := val[tagDate]; ok {
				s, ok := raw.(string)
				if !ok {
					return nil, fmt.Errorf("%s must be a string", tagDate)
				}
				t, err := time.Parse(time.RFC3339Nano, s)
				if err != nil {
					return nil, fmt.Errorf("invalid %s value %q: %w", tagDate, s, err)
				}
				return t, nil
			}
			if raw, ok := val[tagNum]; ok {
				s, ok := raw.(string)
				if !ok {
					return nil, fmt.Errorf("%s must be a string", tagNum)
				}
				f, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid %s value %q: %w", tagNum, s, err)
				}
				return f, nil
			}
			if raw, ok := val[tagRef]; ok {
				ref, ok := raw.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%s must be an object", tagRef)
				}
				c, _ := ref["collection"].(string)
				id, _ := ref["id"].(string)
				return core.Reference{Collection: c, ID: id}, nil
			}
			if raw, ok := val[tagMap]; ok {
				inner, ok := raw.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%s must be an object", tagMap)
				}
				return decodeEntries(inner)
			}
		}
		return decodeEntries(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			d, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	}
	return v, nil
}

func decodeEntries(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, item := range m {
		d, err := decodeValue(item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = d
	}
	return out, nil
}
