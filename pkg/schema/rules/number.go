package rules

import (
	"fmt"
	"math"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// NumberCheck is one step of a number pipe.
type NumberCheck struct {
	name  string
	apply func(float64) *Failure
}

// CheckNumber builds a custom NumberCheck.
func CheckNumber(name string, fn func(float64) *Failure) NumberCheck {
	return NumberCheck{name: name, apply: fn}
}

// MinValue rejects numbers below min.
func MinValue(min float64) NumberCheck {
	return CheckNumber("min_value", func(v float64) *Failure {
		if v < min {
			return &Failure{Type: "min_value", Message: fmt.Sprintf("Invalid value: Expected >=%s but received %s", formatFloat(min), formatFloat(v))}
		}
		return nil
	})
}

// MaxValue rejects numbers above max.
func MaxValue(max float64) NumberCheck {
	return CheckNumber("max_value", func(v float64) *Failure {
		if v > max {
			return &Failure{Type: "max_value", Message: fmt.Sprintf("Invalid value: Expected <=%s but received %s", formatFloat(max), formatFloat(v))}
		}
		return nil
	})
}

// Integer rejects numbers with a fractional part.
func Integer() NumberCheck {
	return CheckNumber("integer", func(v float64) *Failure {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return &Failure{Type: "integer", Message: "Invalid integer: Received " + formatFloat(v)}
		}
		return nil
	})
}

// NumberSchema validates numeric values of any Go numeric kind. The output
// keeps the input's concrete type.
type NumberSchema struct {
	checks []NumberCheck
}

// Number returns a schema accepting numbers and running checks in order.
func Number(checks ...NumberCheck) *NumberSchema {
	return &NumberSchema{checks: checks}
}

func (s *NumberSchema) run(st *state, path fieldpath.Path, input any, present bool) any {
	value, ok := toFloat(input)
	if !ok || math.IsNaN(value) {
		st.fail(path, input, typeFailure("number", input, present))
		return input
	}
	for _, check := range s.checks {
		if check.apply == nil {
			continue
		}
		st.fail(path, input, check.apply(value))
	}
	return input
}

func (s *NumberSchema) describe(name string) schema.Field {
	field := schema.Field{Name: name, Type: schema.FieldTypeNumber, Required: true}
	for _, check := range s.checks {
		if check.name == "integer" {
			field.Type = schema.FieldTypeInteger
		}
	}
	return field
}

// BooleanSchema validates booleans.
type BooleanSchema struct{}

// Boolean returns a schema accepting true and false.
func Boolean() *BooleanSchema {
	return &BooleanSchema{}
}

func (s *BooleanSchema) run(st *state, path fieldpath.Path, input any, present bool) any {
	if _, ok := input.(bool); !ok {
		st.fail(path, input, typeFailure("boolean", input, present))
	}
	return input
}

func (s *BooleanSchema) describe(name string) schema.Field {
	return schema.Field{Name: name, Type: schema.FieldTypeBoolean, Required: true}
}
