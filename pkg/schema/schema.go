// Package schema describes collection data and validates raw entries against it.
//
// A Schema is an explicit, serializable descriptor: one node per field, tagged
// by Type. ParseData walks the descriptor recursively, coercing values, applying
// defaults, resolving references and collecting every issue with a dotted path.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// Kind tags a schema node.
type Kind string

const (
	KindString    Kind = "string"
	KindNumber    Kind = "number"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindReference Kind = "reference"
	KindArray     Kind = "array"
	KindObject    Kind = "object"
	KindEnum      Kind = "enum"
	KindAny       Kind = "any"
)

// Fields maps field names to their schema.
type Fields map[string]*Schema

// Schema is a declarative descriptor for one value.
type Schema struct {
	Type     Kind `json:"type" yaml:"type"`
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
	// Default is used verbatim when the value is absent.
	Default any  `json:"default,omitempty" yaml:"default,omitempty"`
	Coerce  bool `json:"coerce,omitempty" yaml:"coerce,omitempty"`
	// Collection is the target of a reference.
	Collection string   `json:"collection,omitempty" yaml:"collection,omitempty"`
	Items      *Schema  `json:"items,omitempty" yaml:"items,omitempty"`
	Fields     Fields   `json:"fields,omitempty" yaml:"fields,omitempty"`
	Values     []string `json:"values,omitempty" yaml:"values,omitempty"`
	// Passthrough keeps object keys that are not declared in Fields.
	Passthrough bool `json:"passthrough,omitempty" yaml:"passthrough,omitempty"`
}

// Option modifies a schema node.
type Option func(*Schema)

// Optional allows the value to be absent.
func Optional() Option {
	return func(s *Schema) { s.Optional = true }
}

// Default sets the value used when the field is absent.
func Default(v any) Option {
	return func(s *Schema) { s.Default = v }
}

// Coerce enables conversion from other scalar kinds.
func Coerce() Option {
	return func(s *Schema) { s.Coerce = true }
}

// Passthrough keeps undeclared object keys.
func Passthrough() Option {
	return func(s *Schema) { s.Passthrough = true }
}

func build(s *Schema, opts []Option) *Schema {
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func String(opts ...Option) *Schema  { return build(&Schema{Type: KindString}, opts) }
func Number(opts ...Option) *Schema  { return build(&Schema{Type: KindNumber}, opts) }
func Boolean(opts ...Option) *Schema { return build(&Schema{Type: KindBoolean}, opts) }
func Date(opts ...Option) *Schema    { return build(&Schema{Type: KindDate}, opts) }
func Any(opts ...Option) *Schema     { return build(&Schema{Type: KindAny}, opts) }

// Reference declares a pointer to an entry of another collection.
func Reference(collection string, opts ...Option) *Schema {
	return build(&Schema{Type: KindReference, Collection: collection}, opts)
}

// Array declares a list whose elements follow items.
func Array(items *Schema, opts ...Option) *Schema {
	return build(&Schema{Type: KindArray, Items: items}, opts)
}

// Object declares a nested object.
func Object(fields Fields, opts ...Option) *Schema {
	return build(&Schema{Type: KindObject, Fields: fields}, opts)
}

// Enum declares a string restricted to values.
func Enum(values []string, opts ...Option) *Schema {
	return build(&Schema{Type: KindEnum, Values: values}, opts)
}

// Validate reports descriptors that cannot be interpreted.
func (s *Schema) Validate() error {
	return s.validate("")
}

func (s *Schema) validate(path string) error {
	at := func(msg string) error {
		if path == "" {
			return fmt.Errorf("schema: %s", msg)
		}
		return fmt.Errorf("schema %s: %s", path, msg)
	}

	if s == nil {
		return at("missing descriptor")
	}
	switch s.Type {
	case KindString, KindNumber, KindBoolean, KindDate, KindAny:
	case KindReference:
		if s.Collection == "" {
			return at("reference needs a target collection")
		}
	case KindEnum:
		if len(s.Values) == 0 {
			return at("enum needs at least one value")
		}
	case KindArray:
		if s.Items == nil {
			return at("array needs an items schema")
		}
		return s.Items.validate(joinPath(path, "[]"))
	case KindObject:
		for _, name := range s.fieldNames() {
			if err := s.Fields[name].validate(joinPath(path, name)); err != nil {
				return err
			}
		}
	case "":
		return at("missing type")
	default:
		return at(fmt.Sprintf("unknown type %q", s.Type))
	}
	return nil
}

// Digest returns a stable hash of the descriptor.
func (s *Schema) Digest() string {
	if s == nil {
		return ""
	}
	data, err := json.Marshal(s)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", s))
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

func (s *Schema) fieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmarshalYAML accepts either a full mapping or a bare type name ("string").
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Type = Kind(node.Value)
		return nil
	}
	type plain Schema
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Schema(p)
	return nil
}

// UnmarshalJSON accepts either an object or a bare type name.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		s.Type = Kind(name)
		return nil
	}
	type plain Schema
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Schema(p)
	return nil
}
