package fs

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Decoder turns the contents of a data file into a decoded value: a scalar,
// []any, map[string]any, or Ordered for top-level objects whose key order is known.
type Decoder func(data []byte) (any, error)

// KeyValue is one member of an Ordered object.
type KeyValue struct {
	Key   string
	Value any
}

// Ordered is a top-level object that remembers the order of its keys.
type Ordered []KeyValue

// Map returns the members as a plain map.
func (o Ordered) Map() map[string]any {
	m := make(map[string]any, len(o))
	for _, kv := range o {
		m[kv.Key] = kv.Value
	}
	return m
}

// DefaultDecoders returns the decoders for the supported data file extensions.
func DefaultDecoders() map[string]Decoder {
	return map[string]Decoder{
		".json": DecodeJSON,
		".yaml": DecodeYAML,
		".yml":  DecodeYAML,
		".toml": DecodeTOML,
		".csv":  DecodeCSV,
	}
}

// --- JSON ---

// DecodeJSON decodes a JSON document. A top-level object is returned as Ordered.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		var out Ordered
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("invalid json: %w", err)
			}
			key, _ := keyTok.(string)
			var val any
			if err := dec.Decode(&val); err != nil {
				return nil, fmt.Errorf("invalid json at %q: %w", key, err)
			}
			out = append(out, KeyValue{Key: key, Value: val})
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return out, nil
	case '[':
		out := []any{}
		for dec.More() {
			var val any
			if err := dec.Decode(&val); err != nil {
				return nil, fmt.Errorf("invalid json at index %d: %w", len(out), err)
			}
			out = append(out, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("invalid json: unexpected %v", delim)
}

// --- YAML ---

// DecodeYAML decodes a YAML document. A top-level mapping is returned as Ordered.
// Timestamps become time.Time, as they would for a YAML 1.1 reader.
func DecodeYAML(data []byte) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}

	n := &root
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, nil
		}
		n = n.Content[0]
	}
	if n.Kind == yaml.MappingNode {
		return orderedFromNode(n)
	}
	return nodeValue(n)
}

// DecodeYAMLMap decodes a YAML mapping into a plain map. Empty input yields an empty map.
func DecodeYAMLMap(data []byte) (map[string]any, error) {
	v, err := DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case nil:
		return map[string]any{}, nil
	case Ordered:
		return m.Map(), nil
	}
	return nil, fmt.Errorf("invalid yaml: expected a mapping, got %T", v)
}

func orderedFromNode(n *yaml.Node) (Ordered, error) {
	var out Ordered
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.ShortTag() == "!!merge" {
			merged, err := nodeValue(v)
			if err != nil {
				return nil, err
			}
			out = append(out, mergeMembers(merged)...)
			continue
		}
		val, err := nodeValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, KeyValue{Key: k.Value, Value: val})
	}
	return out, nil
}

func mergeMembers(v any) Ordered {
	var out Ordered
	switch m := v.(type) {
	case map[string]any:
		for k, val := range m {
			out = append(out, KeyValue{Key: k, Value: val})
		}
	case []any:
		for _, item := range m {
			out = append(out, mergeMembers(item)...)
		}
	}
	return out
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		members, err := orderedFromNode(n)
		if err != nil {
			return nil, err
		}
		return members.Map(), nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!timestamp" {
			var t time.Time
			if err := n.Decode(&t); err == nil {
				return t, nil
			}
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, nil
}

// --- TOML ---

// DecodeTOML decodes a TOML document into a map. TOML tables do not keep key order.
// Local dates and date-times become UTC time.Time values; local times become strings.
func DecodeTOML(data []byte) (any, error) {
	var payload map[string]any
	if err := toml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid toml: %w", err)
	}
	return tomlValue(payload), nil
}

func tomlValue(v any) any {
	switch t := v.(type) {
	case toml.LocalDate:
		return t.AsTime(time.UTC)
	case toml.LocalDateTime:
		return t.AsTime(time.UTC)
	case toml.LocalTime:
		return t.String()
	case map[string]any:
		for k, item := range t {
			t[k] = tomlValue(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = tomlValue(item)
		}
		return t
	}
	return v
}

// --- CSV ---

// DecodeCSV decodes a CSV file with a header row into a list of records.
func DecodeCSV(data []byte) (any, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	records := []any{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", len(records)+1, err)
		}
		if len(row) != len(headers) {
			return nil, fmt.Errorf("csv row %d length mismatch", len(records)+1)
		}

		rec := make(map[string]any, len(headers))
		for i, h := range headers {
			rec[strings.TrimSpace(h)] = UnmarshalCSVValue(row[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

// UnmarshalCSVValue attempts to parse a string as JSON if it looks like a Map or Slice.
// Otherwise returns the string as is.
//
// CAVEAT: This uses a heuristic (starts/ends with {} or []). It is possible for a raw string
// that happens to be valid JSON (e.g. "{foo}") to be interpreted as an object.
func UnmarshalCSVValue(val string) any {
	valTrimmed := strings.TrimSpace(val)
	if (strings.HasPrefix(valTrimmed, "{") && strings.HasSuffix(valTrimmed, "}")) ||
		(strings.HasPrefix(valTrimmed, "[") && strings.HasSuffix(valTrimmed, "]")) {
		var parsed any
		if err := json.Unmarshal([]byte(valTrimmed), &parsed); err == nil {
			return parsed
		}
	}
	return val
}

// --- Markdown frontmatter ---

// Frontmatter is a markdown document split into its YAML header and body.
type Frontmatter struct {
	Data map[string]any
	// Raw is the YAML source between the delimiters.
	Raw  string
	Body string
}

// ParseFrontmatter splits a markdown document. Documents without a leading
// "---" line have empty data and the whole input as body.
func ParseFrontmatter(data []byte) (*Frontmatter, error) {
	fm := &Frontmatter{Data: map[string]any{}}

	var rest []byte
	switch {
	case bytes.HasPrefix(data, []byte("---\n")):
		rest = data[4:]
	case bytes.HasPrefix(data, []byte("---\r\n")):
		rest = data[5:]
	default:
		fm.Body = string(data)
		return fm, nil
	}

	yamlData, body, found := splitClosingDelimiter(rest)
	if !found {
		return nil, errors.New("frontmatter started but no closing delimiter found")
	}

	meta, err := DecodeYAMLMap(yamlData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	fm.Data = meta
	fm.Raw = string(yamlData)
	fm.Body = strings.TrimPrefix(string(body), "\n")
	fm.Body = strings.TrimPrefix(fm.Body, "\r\n")
	return fm, nil
}

// splitClosingDelimiter finds the first line consisting of "---".
func splitClosingDelimiter(rest []byte) (header, body []byte, found bool) {
	if bytes.HasPrefix(rest, []byte("---")) && isLineEnd(rest[3:]) {
		return nil, rest[3:], true
	}
	offset := 0
	for {
		idx := bytes.Index(rest[offset:], []byte("\n---"))
		if idx < 0 {
			return nil, nil, false
		}
		start := offset + idx
		after := rest[start+4:]
		if isLineEnd(after) {
			header = bytes.TrimSuffix(rest[:start], []byte("\r"))
			return header, after, true
		}
		offset = start + 4
	}
}

func isLineEnd(b []byte) bool {
	return len(b) == 0 || b[0] == '\n' || bytes.HasPrefix(b, []byte("\r\n"))
}
