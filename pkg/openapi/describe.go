package openapi

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formstate/pkg/schema"
)

// maxDepth bounds descriptor recursion for self-referencing schemas.
const maxDepth = 16

// Fields implements schema.Describer from the request body properties.
func (v *Validator) Fields() []schema.Field {
	return describeProperties(v.body, 0)
}

// InitialValues builds a value tree from the request body defaults.
func (v *Validator) InitialValues() map[string]any {
	return schema.InitialValues(v.Fields())
}

func describeProperties(s *openapi3.Schema, depth int) []schema.Field {
	if s == nil || len(s.Properties) == 0 || depth > maxDepth {
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
		ref := s.Properties[name]
		if ref == nil || ref.Value == nil || ref.Value.ReadOnly {
			continue
		}
		field := describe(name, ref.Value, depth+1)
		field.Required = required[name]
		fields = append(fields, field)
	}
	return fields
}

func describe(name string, s *openapi3.Schema, depth int) schema.Field {
	field := schema.Field{
		Name:        name,
		Type:        fieldType(s),
		Format:      s.Format,
		Label:       s.Title,
		Description: s.Description,
		Default:     s.Default,
		Secret:      s.WriteOnly,
	}
	if len(s.Enum) > 0 {
		field.Enum = append([]any(nil), s.Enum...)
	}
	switch field.Type {
	case schema.FieldTypeObject:
		field.Nested = describeProperties(s, depth)
	case schema.FieldTypeArray:
		if s.Items != nil && s.Items.Value != nil && depth <= maxDepth {
			item := describe("", s.Items.Value, depth+1)
			field.Items = &item
		}
	}
	return field
}

func fieldType(s *openapi3.Schema) schema.FieldType {
	if s.Type != nil {
		for _, t := range s.Type.Slice() {
			switch t {
			case openapi3.TypeString:
				return schema.FieldTypeString
			case openapi3.TypeInteger:
				return schema.FieldTypeInteger
			case openapi3.TypeNumber:
				return schema.FieldTypeNumber
			case openapi3.TypeBoolean:
				return schema.FieldTypeBoolean
			case openapi3.TypeArray:
				return schema.FieldTypeArray
			case openapi3.TypeObject:
				return schema.FieldTypeObject
			}
		}
	}
	if len(s.Properties) > 0 {
		return schema.FieldTypeObject
	}
	if s.Items != nil {
		return schema.FieldTypeArray
	}
	return schema.FieldTypeString
}
