package jsonschema

import (
	"encoding/json"
	"sort"

	jsv "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/goliatone/go-formstate/pkg/schema"
)

// Fields implements schema.Describer from the root object's properties.
func (v *Validator) Fields() []schema.Field {
	root := deref(v.compiled)
	if root == nil {
		return nil
	}
	return describeProperties(root)
}

// InitialValues builds a value tree from the schema defaults.
func (v *Validator) InitialValues() map[string]any {
	return schema.InitialValues(v.Fields())
}

func describeProperties(s *jsv.Schema) []schema.Field {
	if len(s.Properties) == 0 {
		return nil
	}
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]schema.Field, 0, len(names))
	for _, name := range names {
		field := describe(name, s.Properties[name])
		field.Required = required[name]
		fields = append(fields, field)
	}
	return fields
}

func describe(name string, s *jsv.Schema) schema.Field {
	s = deref(s)
	field := schema.Field{Name: name}
	if s == nil {
		field.Type = schema.FieldTypeString
		return field
	}

	field.Type = fieldType(s)
	field.Format = s.Format
	field.Label = s.Title
	field.Description = s.Description
	field.Secret = s.WriteOnly
	field.Default = plain(s.Default)
	for _, value := range s.Enum {
		field.Enum = append(field.Enum, plain(value))
	}

	switch field.Type {
	case schema.FieldTypeObject:
		field.Nested = describeProperties(s)
	case schema.FieldTypeArray:
		if items := itemSchema(s); items != nil {
			item := describe("", items)
			field.Items = &item
		}
	}
	return field
}

func deref(s *jsv.Schema) *jsv.Schema {
	for depth := 0; s != nil && s.Ref != nil && len(s.Types) == 0 && len(s.Properties) == 0 && depth < 32; depth++ {
		s = s.Ref
	}
	return s
}

func fieldType(s *jsv.Schema) schema.FieldType {
	for _, t := range s.Types {
		switch t {
		case "string":
			return schema.FieldTypeString
		case "integer":
			return schema.FieldTypeInteger
		case "number":
			return schema.FieldTypeNumber
		case "boolean":
			return schema.FieldTypeBoolean
		case "array":
			return schema.FieldTypeArray
		case "object":
			return schema.FieldTypeObject
		}
	}
	if len(s.Properties) > 0 {
		return schema.FieldTypeObject
	}
	if itemSchema(s) != nil {
		return schema.FieldTypeArray
	}
	return schema.FieldTypeString
}

func itemSchema(s *jsv.Schema) *jsv.Schema {
	if s.Items2020 != nil {
		return s.Items2020
	}
	if items, ok := s.Items.(*jsv.Schema); ok {
		return items
	}
	return nil
}

// plain converts json.Number values decoded by the compiler into int64 or
// float64 so defaults compare equal to values decoded elsewhere.
func plain(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = plain(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = plain(item)
		}
		return out
	default:
		return value
	}
}
