package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
)

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array"
	FieldTypeObject  FieldType = "object"
)

// Field describes one addressable input derived from a schema. Bindings use
// descriptors to decide how to prompt for a value and how to coerce raw
// string input before it reaches the store.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	Format      string    `json:"format,omitempty" yaml:"format,omitempty"`
	Required    bool      `json:"required" yaml:"required"`
	Label       string    `json:"label,omitempty" yaml:"label,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []any     `json:"enum,omitempty" yaml:"enum,omitempty"`
	Secret      bool      `json:"secret,omitempty" yaml:"secret,omitempty"`
	Nested      []Field   `json:"nested,omitempty" yaml:"nested,omitempty"`
	Items       *Field    `json:"items,omitempty" yaml:"items,omitempty"`
}

// Describer is implemented by validators that can list the fields of the
// schema they enforce.
type Describer interface {
	Fields() []Field
}

// DisplayLabel returns the label or a humanised version of the name.
func (f Field) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	name := f.Name
	if idx := strings.LastIndexAny(name, ".]"); idx >= 0 && idx+1 < len(name) {
		name = name[idx+1:]
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	if name == "" {
		return f.Name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// IsSecret reports whether the value should be masked when prompted.
func (f Field) IsSecret() bool {
	return f.Secret || strings.EqualFold(f.Format, "password")
}

// Coerce converts raw string input into the value type the field expects.
// Empty input for optional scalar fields yields nil.
func (f Field) Coerce(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	switch f.Type {
	case FieldTypeInteger:
		if trimmed == "" {
			return nil, nil
		}
		i, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("schema: field %s expects an integer: %w", f.Name, err)
		}
		return i, nil
	case FieldTypeNumber:
		if trimmed == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("schema: field %s expects a number: %w", f.Name, err)
		}
		return n, nil
	case FieldTypeBoolean:
		switch strings.ToLower(trimmed) {
		case "", "false", "0", "off", "no":
			return false, nil
		case "true", "1", "on", "yes":
			return true, nil
		default:
			return nil, fmt.Errorf("schema: field %s expects a boolean, got %q", f.Name, raw)
		}
	case FieldTypeArray:
		if trimmed == "" {
			return []any{}, nil
		}
		parts := strings.Split(trimmed, ",")
		out := make([]any, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if f.Items != nil {
				item, err := f.Items.Coerce(part)
				if err != nil {
					return nil, err
				}
				out = append(out, item)
				continue
			}
			out = append(out, part)
		}
		return out, nil
	default:
		return raw, nil
	}
}

// Leaves flattens nested object descriptors into fields addressed by their
// full dotted path. Array fields are kept whole.
func Leaves(fields []Field) []Field {
	var out []Field
	collectLeaves(fields, nil, &out)
	return out
}

func collectLeaves(fields []Field, prefix fieldpath.Path, out *[]Field) {
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		path := prefix.Append(fieldpath.Key(name))
		if field.Type == FieldTypeObject && len(field.Nested) > 0 {
			collectLeaves(field.Nested, path, out)
			continue
		}
		leaf := field
		leaf.Name = path.String()
		*out = append(*out, leaf)
	}
}

// Lookup returns the descriptor addressed by a canonical field path, searching
// nested objects and array items.
func Lookup(fields []Field, name string) (Field, bool) {
	target := fieldpath.Canonical(name)
	for _, leaf := range Leaves(fields) {
		if leaf.Name == target {
			return leaf, true
		}
	}
	path, err := fieldpath.Parse(name)
	if err != nil || len(path) < 2 {
		return Field{}, false
	}
	// users[0].email resolves through the items descriptor of users.
	current := fields
	var found *Field
	for _, seg := range path {
		if seg.Kind == fieldpath.IndexSegment {
			if found == nil || found.Items == nil {
				return Field{}, false
			}
			found = found.Items
			current = found.Nested
			continue
		}
		found = nil
		for i := range current {
			if current[i].Name == seg.Key {
				found = &current[i]
				break
			}
		}
		if found == nil {
			return Field{}, false
		}
		current = found.Nested
	}
	if found == nil {
		return Field{}, false
	}
	out := *found
	out.Name = path.String()
	return out, true
}

// InitialValues builds a value tree from descriptor defaults. Strings default
// to "", booleans to false, arrays to an empty list and objects recurse;
// numbers without a default are left out.
func InitialValues(fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		if field.Default != nil {
			out[name] = field.Default
			continue
		}
		switch field.Type {
		case FieldTypeObject:
			out[name] = InitialValues(field.Nested)
		case FieldTypeArray:
			out[name] = []any{}
		case FieldTypeBoolean:
			out[name] = false
		case FieldTypeInteger, FieldTypeNumber:
		default:
			out[name] = ""
		}
	}
	return out
}

// SortFields orders descriptors by name, recursively, for deterministic output.
func SortFields(fields []Field) {
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	for i := range fields {
		if len(fields[i].Nested) > 0 {
			SortFields(fields[i].Nested)
		}
		if fields[i].Items != nil && len(fields[i].Items.Nested) > 0 {
			SortFields(fields[i].Items.Nested)
		}
	}
}
