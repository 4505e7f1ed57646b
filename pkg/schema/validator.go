// Package schema defines the validation capability the form store depends
// on. A Validator parses the current form values and reports issues located
// by field path; concrete engines live in sibling packages (rules,
// jsonschema, openapi) so the store never depends on one of them directly.
package schema

import (
	"context"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
)

// Issue is one validation failure.
type Issue struct {
	// Type is the engine's tag for the failed check, e.g. "email" or
	// "min_length".
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Path    fieldpath.Path `json:"-"`
	// Input is the offending value when the engine reports it.
	Input any `json:"input,omitempty"`
}

// Field returns the canonical field path the issue belongs to.
func (i Issue) Field() string {
	return i.Path.String()
}

// Result is the outcome of parsing a value.
type Result struct {
	Valid  bool
	Issues []Issue
	// Output is the parsed, possibly coerced, value.
	Output any
}

// Validator parses input against a schema. The returned error is reserved
// for engine failures (compilation, cancellation); validation failures are
// reported through Result.Issues.
type Validator interface {
	Parse(ctx context.Context, input any) (Result, error)
}

// ValidatorFunc adapts a function into a Validator.
type ValidatorFunc func(ctx context.Context, input any) (Result, error)

// Parse calls f.
func (f ValidatorFunc) Parse(ctx context.Context, input any) (Result, error) {
	return f(ctx, input)
}

// Any returns a Validator that accepts every input and echoes it as output.
func Any() Validator {
	return ValidatorFunc(func(ctx context.Context, input any) (Result, error) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		return Result{Valid: true, Output: input}, nil
	})
}

// NewResult builds a Result whose validity follows the issue list.
func NewResult(output any, issues []Issue) Result {
	return Result{
		Valid:  len(issues) == 0,
		Issues: issues,
		Output: output,
	}
}
