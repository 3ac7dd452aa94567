// Package loaders provides the built-in loaders: Glob for one entry per file,
// File for many entries in one data file, and Inline for records produced by
// a function.
package loaders

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/aretw0/contentlayer/pkg/adapters/fs"
	"github.com/aretw0/contentlayer/pkg/core"
)

// record is one raw item before validation. key is set when the source was
// an object map of id to record.
type record struct {
	key  string
	data any
}

// recordsFrom accepts an array of records or an object map of id to record.
func recordsFrom(v any) ([]record, error) {
	switch t := v.(type) {
	case []any:
		out := make([]record, len(t))
		for i, item := range t {
			out[i] = record{data: item}
		}
		return out, nil
	case []map[string]any:
		out := make([]record, len(t))
		for i, item := range t {
			out[i] = record{data: item}
		}
		return out, nil
	case fs.Ordered:
		out := make([]record, len(t))
		for i, kv := range t {
			out[i] = record{key: kv.Key, data: kv.Value}
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]record, len(keys))
		for i, k := range keys {
			out[i] = record{key: k, data: t[k]}
		}
		return out, nil
	}
	return nil, fmt.Errorf("data must be an array of records or an object keyed by id, got %T", v)
}

// recordID picks the id of a record: the map key, then "id", then "slug".
func recordID(r record, data map[string]any) (string, bool) {
	if r.key != "" {
		return r.key, true
	}
	if id, ok := data["id"].(string); ok && id != "" {
		return id, true
	}
	if slug, ok := data["slug"].(string); ok && slug != "" {
		return slug, true
	}
	return "", false
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case fs.Ordered:
		return t.Map(), true
	}
	return nil, false
}

// ingester validates records and writes them to a cleared collection.
type ingester struct {
	lc     *core.LoaderContext
	logger *slog.Logger
	source string
}

// put stores one record. Problems with the record are logged and the record
// is skipped.
func (in *ingester) put(r record, index int) {
	data, ok := asMap(r.data)
	if !ok {
		in.logger.Error("record is not an object, skipping",
			"source", in.source, "index", index, "type", fmt.Sprintf("%T", r.data))
		return
	}
	id, ok := recordID(r, data)
	if !ok {
		in.logger.Error("record is missing a non-empty string id or slug, skipping",
			"source", in.source, "index", index)
		return
	}

	parsed, err := in.lc.ParseData(core.ParseInput{ID: id, Data: data, FilePath: in.source})
	if err != nil {
		in.logger.Error("skipping invalid entry", "id", id, "source", in.source, "error", err)
		return
	}

	existed, err := in.lc.Store.Set(core.Entry{
		ID:       id,
		Data:     parsed,
		FilePath: in.source,
		Digest:   in.lc.GenerateDigest(data),
	})
	if err != nil {
		in.logger.Error("failed to store entry", "id", id, "error", err)
		return
	}
	if existed {
		where := in.source
		if where == "" {
			where = "loader output"
		}
		in.logger.Warn(fmt.Sprintf("duplicate id %q found in %s, later items with the same id will overwrite earlier ones", id, where),
			"id", id)
	}
}

func loggerOf(lc *core.LoaderContext) *slog.Logger {
	if lc.Logger != nil {
		return lc.Logger
	}
	return slog.Default()
}

// resolve makes p absolute against the project root.
func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// relative returns p relative to root with forward slashes, or p itself
// when it is outside root.
func relative(root, p string) string {
	if root == "" {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
