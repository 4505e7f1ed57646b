package rules

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// Fields maps object keys to their schemas.
type Fields map[string]Schema

type refinement struct {
	target fieldpath.Path
	check  func(map[string]any) *Failure
}

// ObjectSchema validates map[string]any values. Unknown keys are dropped
// from the output; keys are visited in sorted order.
type ObjectSchema struct {
	fields  Fields
	keys    []string
	refines []refinement
}

var (
	_ schema.Validator = (*ObjectSchema)(nil)
	_ schema.Describer = (*ObjectSchema)(nil)
)

// Object returns a schema for an object with the given fields.
func Object(fields Fields) *ObjectSchema {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &ObjectSchema{fields: fields, keys: keys}
}

// Refine adds an object-level check whose failure is reported at target,
// a path relative to the object. Refinements only run when every field
// passed, so cross-field rules see well-typed values.
func (s *ObjectSchema) Refine(target string, check func(values map[string]any) *Failure) *ObjectSchema {
	s.refines = append(s.refines, refinement{target: fieldpath.MustParse(target), check: check})
	return s
}

// Parse implements schema.Validator.
func (s *ObjectSchema) Parse(ctx context.Context, input any) (schema.Result, error) {
	return Parse(ctx, s, input)
}

// Fields implements schema.Describer.
func (s *ObjectSchema) Fields() []schema.Field {
	return s.describe("").Nested
}

func (s *ObjectSchema) run(st *state, path fieldpath.Path, input any, present bool) any {
	values, ok := asMap(input)
	if !ok {
		st.fail(path, input, typeFailure("object", input, present))
		return input
	}

	before := len(st.issues)
	output := make(map[string]any, len(s.keys))
	for _, key := range s.keys {
		raw, exists := values[key]
		parsed := s.fields[key].run(st, path.Append(fieldpath.Key(key)), raw, exists)
		if exists || parsed != nil {
			output[key] = parsed
		}
	}

	if len(st.issues) == before {
		for _, refine := range s.refines {
			st.fail(path.Append(refine.target...), output, refine.check(output))
		}
	}
	return output
}

func (s *ObjectSchema) describe(name string) schema.Field {
	field := schema.Field{Name: name, Type: schema.FieldTypeObject, Required: true}
	for _, key := range s.keys {
		child := s.fields[key].describe(key)
		child.Required = !isOptional(s.fields[key])
		field.Nested = append(field.Nested, child)
	}
	return field
}

// ArrayCheck is one step of an array pipe.
type ArrayCheck func(items []any) *Failure

// MinItems rejects arrays with fewer than n items.
func MinItems(n int) ArrayCheck {
	return func(items []any) *Failure {
		if len(items) < n {
			return &Failure{Type: "min_length", Message: fmt.Sprintf("Invalid length: Expected >=%d but received %d", n, len(items))}
		}
		return nil
	}
}

// MaxItems rejects arrays with more than n items.
func MaxItems(n int) ArrayCheck {
	return func(items []any) *Failure {
		if len(items) > n {
			return &Failure{Type: "max_length", Message: fmt.Sprintf("Invalid length: Expected <=%d but received %d", n, len(items))}
		}
		return nil
	}
}

// ArraySchema validates slices, applying item to every element.
type ArraySchema struct {
	item   Schema
	checks []ArrayCheck
}

// Array returns a schema for a list of item values.
func Array(item Schema, checks ...ArrayCheck) *ArraySchema {
	return &ArraySchema{item: item, checks: checks}
}

func (s *ArraySchema) run(st *state, path fieldpath.Path, input any, present bool) any {
	items, ok := asSlice(input)
	if !ok {
		st.fail(path, input, typeFailure("array", input, present))
		return input
	}
	output := make([]any, len(items))
	for i, item := range items {
		output[i] = s.item.run(st, path.Append(fieldpath.Index(i)), item, true)
	}
	for _, check := range s.checks {
		st.fail(path, input, check(items))
	}
	return output
}

func (s *ArraySchema) describe(name string) schema.Field {
	item := s.item.describe("")
	return schema.Field{Name: name, Type: schema.FieldTypeArray, Required: true, Items: &item}
}

// OptionalSchema accepts a missing or nil value, optionally substituting a
// default, and otherwise defers to the wrapped schema.
type OptionalSchema struct {
	wrapped  Schema
	fallback any
	hasValue bool
}

// Optional wraps s so missing or nil values pass. When a default is given
// it becomes the output for missing values.
func Optional(s Schema, def ...any) *OptionalSchema {
	opt := &OptionalSchema{wrapped: s}
	if len(def) > 0 {
		opt.fallback = def[0]
		opt.hasValue = true
	}
	return opt
}

func (s *OptionalSchema) run(st *state, path fieldpath.Path, input any, present bool) any {
	if !present || input == nil {
		if s.hasValue {
			return s.fallback
		}
		return nil
	}
	return s.wrapped.run(st, path, input, present)
}

func (s *OptionalSchema) describe(name string) schema.Field {
	field := s.wrapped.describe(name)
	field.Required = false
	if s.hasValue {
		field.Default = s.fallback
	}
	return field
}

// AnySchema accepts every value.
type AnySchema struct{}

// Any returns a schema that accepts every value unchanged.
func Any() *AnySchema {
	return &AnySchema{}
}

func (s *AnySchema) run(_ *state, _ fieldpath.Path, input any, _ bool) any {
	return input
}

func (s *AnySchema) describe(name string) schema.Field {
	return schema.Field{Name: name, Type: schema.FieldTypeString}
}

// LabeledSchema decorates a schema with descriptor metadata.
type LabeledSchema struct {
	Schema
	label       string
	description string
}

// Label attaches a label and optional description to s for bindings that
// render prompts or inputs.
func Label(s Schema, label string, description ...string) *LabeledSchema {
	l := &LabeledSchema{Schema: s, label: label}
	if len(description) > 0 {
		l.description = description[0]
	}
	return l
}

func (s *LabeledSchema) describe(name string) schema.Field {
	field := s.Schema.describe(name)
	field.Label = s.label
	field.Description = s.description
	return field
}

func isOptional(s Schema) bool {
	switch v := s.(type) {
	case *OptionalSchema:
		return true
	case *LabeledSchema:
		return isOptional(v.Schema)
	}
	return false
}

func asMap(input any) (map[string]any, bool) {
	if m, ok := input.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(input)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func asSlice(input any) ([]any, bool) {
	if s, ok := input.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(input)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
