package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/contentlayer/pkg/core"
)

// Input is the raw material for one entry.
type Input struct {
	ID       string
	Data     core.Data
	FilePath string
}

// ParseData validates in.Data against s and returns the transformed data.
// A nil schema only normalizes. Every issue found is reported in a single
// *ValidationError.
func ParseData(collection string, in Input, s *Schema) (core.Data, error) {
	raw := core.Data{}
	if in.Data != nil {
		if m, ok := Normalize(map[string]any(in.Data)).(map[string]any); ok {
			raw = m
		}
	}
	if s == nil {
		return raw, nil
	}

	p := &parser{}
	out, _ := p.value(s, raw, "")
	if len(p.issues) > 0 {
		return nil, &ValidationError{
			Collection: collection,
			ID:         in.ID,
			FilePath:   in.FilePath,
			Issues:     p.issues,
		}
	}
	data, ok := out.(map[string]any)
	if !ok {
		return nil, &ValidationError{
			Collection: collection,
			ID:         in.ID,
			FilePath:   in.FilePath,
			Issues:     []Issue{{Message: "Expected object, received " + kindOf(out)}},
		}
	}
	return data, nil
}

type parser struct {
	issues []Issue
}

func (p *parser) fail(path, format string, args ...any) {
	p.issues = append(p.issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

// value returns the transformed value and whether it should be kept.
func (p *parser) value(s *Schema, v any, path string) (any, bool) {
	if v == nil {
		if s.Default != nil {
			d := Normalize(s.Default)
			// A reference default stays the literal value.
			if s.Type == KindReference {
				return d, true
			}
			return p.value(s, d, path)
		}
		if !s.Optional {
			p.fail(path, "Required")
		}
		return nil, false
	}

	switch s.Type {
	case KindString:
		return p.str(s, v, path)
	case KindNumber:
		return p.number(s, v, path)
	case KindBoolean:
		return p.boolean(s, v, path)
	case KindDate:
		return p.date(s, v, path)
	case KindReference:
		return p.reference(s, v, path)
	case KindEnum:
		return p.enum(s, v, path)
	case KindArray:
		return p.array(s, v, path)
	case KindObject:
		return p.object(s, v, path)
	case KindAny:
		return v, true
	}
	p.fail(path, "Unknown schema type %q", s.Type)
	return nil, false
}

func (p *parser) str(s *Schema, v any, path string) (any, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		if s.Coerce {
			return strconv.FormatFloat(t, 'f', -1, 64), true
		}
	case bool:
		if s.Coerce {
			return strconv.FormatBool(t), true
		}
	case time.Time:
		if s.Coerce {
			return t.Format(time.RFC3339), true
		}
	}
	p.fail(path, "Expected string, received %s", kindOf(v))
	return nil, false
}

func (p *parser) number(s *Schema, v any, path string) (any, bool) {
	switch t := v.(type) {
	case float64:
		return p.finite(t, path)
	case string:
		if s.Coerce {
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				p.fail(path, "Expected number, received nan")
				return nil, false
			}
			return p.finite(f, path)
		}
	case bool:
		if s.Coerce {
			if t {
				return float64(1), true
			}
			return float64(0), true
		}
	case time.Time:
		if s.Coerce {
			return float64(t.UnixMilli()), true
		}
	}
	p.fail(path, "Expected number, received %s", kindOf(v))
	return nil, false
}

// finite rejects NaN and infinities.
func (p *parser) finite(f float64, path string) (any, bool) {
	switch {
	case math.IsNaN(f):
		p.fail(path, "Expected number, received nan")
		return nil, false
	case math.IsInf(f, 0):
		p.fail(path, "Number must be finite")
		return nil, false
	}
	return f, true
}

func (p *parser) boolean(s *Schema, v any, path string) (any, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		if s.Coerce {
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err == nil {
				return b, true
			}
		}
	case float64:
		if s.Coerce {
			return t != 0, true
		}
	}
	p.fail(path, "Expected boolean, received %s", kindOf(v))
	return nil, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate accepts the date layouts recognized by coercion.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (p *parser) date(s *Schema, v any, path string) (any, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if s.Coerce {
			if d, ok := ParseDate(t); ok {
				return d, true
			}
			p.fail(path, "Invalid date")
			return nil, false
		}
	case float64:
		if s.Coerce {
			return time.UnixMilli(int64(t)).UTC(), true
		}
	}
	p.fail(path, "Expected date, received %s", kindOf(v))
	return nil, false
}

func (p *parser) reference(s *Schema, v any, path string) (any, bool) {
	switch t := v.(type) {
	case string:
		if t != "" {
			return core.Reference{Collection: s.Collection, ID: t}, true
		}
	case core.Reference:
		if t.Collection == s.Collection && t.ID != "" {
			return t, true
		}
	case map[string]any:
		id, _ := t["id"].(string)
		c, hasCollection := t["collection"].(string)
		if id != "" && (!hasCollection || c == s.Collection) {
			return core.Reference{Collection: s.Collection, ID: id}, true
		}
	}
	p.fail(path, "Expected a reference to collection %q, received %s", s.Collection, kindOf(v))
	return nil, false
}

func (p *parser) enum(s *Schema, v any, path string) (any, bool) {
	str, ok := v.(string)
	if ok {
		for _, allowed := range s.Values {
			if str == allowed {
				return str, true
			}
		}
	}
	quoted := make([]string, len(s.Values))
	for i, allowed := range s.Values {
		quoted[i] = "'" + allowed + "'"
	}
	if ok {
		p.fail(path, "Invalid enum value. Expected %s, received '%s'", strings.Join(quoted, " | "), str)
	} else {
		p.fail(path, "Invalid enum value. Expected %s, received %s", strings.Join(quoted, " | "), kindOf(v))
	}
	return nil, false
}

func (p *parser) array(s *Schema, v any, path string) (any, bool) {
	items, ok := v.([]any)
	if !ok {
		p.fail(path, "Expected array, received %s", kindOf(v))
		return nil, false
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		res, keep := p.value(s.Items, item, joinPath(path, strconv.Itoa(i)))
		if !keep {
			res = nil
		}
		out = append(out, res)
	}
	return out, true
}

func (p *parser) object(s *Schema, v any, path string) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		p.fail(path, "Expected object, received %s", kindOf(v))
		return nil, false
	}
	out := make(map[string]any, len(s.Fields))
	for _, name := range s.fieldNames() {
		res, keep := p.value(s.Fields[name], m[name], joinPath(path, name))
		if keep {
			out[name] = res
		}
	}
	if s.Passthrough {
		for k, val := range m {
			if _, declared := s.Fields[k]; !declared {
				out[k] = val
			}
		}
	}
	return out, true
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case time.Time:
		return "date"
	case core.Reference:
		return "reference"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
