// Package rules is a small, composable validator for form values. Schemas
// are built from constructors such as Object, String and Number, each taking
// a pipe of checks. Every check in a pipe runs and reports, so one parse
// returns all issues for all fields.
//
//	signup := rules.Object(rules.Fields{
//		"email":    rules.String(rules.Email()),
//		"password": rules.String(rules.MinLength(8)),
//	})
//
// Issue types and messages follow the conventions used by browser-side
// schema libraries ("email", "min_length", "Invalid length: Expected >=8 but
// received 0") so errors rendered by either side read the same.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// Schema validates and transforms one node of the value tree.
type Schema interface {
	run(st *state, path fieldpath.Path, input any, present bool) any
	describe(name string) schema.Field
}

// Failure is what a check reports when it rejects a value.
type Failure struct {
	Type    string
	Message string
}

type state struct {
	issues []schema.Issue
}

func (s *state) fail(path fieldpath.Path, input any, f *Failure) {
	if f == nil {
		return
	}
	s.issues = append(s.issues, schema.Issue{
		Type:    f.Type,
		Message: f.Message,
		Path:    path.Append(),
		Input:   input,
	})
}

// Parse runs s against input and returns a schema.Result.
func Parse(ctx context.Context, s Schema, input any) (schema.Result, error) {
	if err := ctx.Err(); err != nil {
		return schema.Result{}, err
	}
	st := &state{}
	output := s.run(st, fieldpath.Path{}, input, true)
	return schema.NewResult(output, st.issues), nil
}

// Validator adapts any Schema into a schema.Validator.
func Validator(s Schema) schema.Validator {
	return schema.ValidatorFunc(func(ctx context.Context, input any) (schema.Result, error) {
		return Parse(ctx, s, input)
	})
}

func typeFailure(expected string, input any, present bool) *Failure {
	return &Failure{
		Type:    expected,
		Message: fmt.Sprintf("Invalid type: Expected %s but received %s", expected, received(input, present)),
	}
}

// received renders a value the way issue messages quote it.
func received(input any, present bool) string {
	if !present {
		return "undefined"
	}
	switch v := input.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case map[string]any:
		return "Object"
	case []any:
		return "Array"
	}
	if f, ok := toFloat(input); ok {
		return formatFloat(f)
	}
	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return "Array"
	case reflect.Map, reflect.Struct:
		return "Object"
	}
	return fmt.Sprintf("%v", input)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toFloat(input any) (float64, bool) {
	switch v := input.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
