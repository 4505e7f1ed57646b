package form

import (
	"errors"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

var (
	// ErrInvalidPath is returned for field paths that do not parse.
	ErrInvalidPath = fieldpath.ErrInvalidPath
	// ErrFieldNotFound is returned by lookups of paths with no value.
	ErrFieldNotFound = errors.New("form: field not found")
	// ErrSubmitInProgress is returned by Submit when the submit guard is
	// enabled and another submission has not finished.
	ErrSubmitInProgress = errors.New("form: submit already in progress")
)

// FormErrorKey is the error key for messages that belong to the form rather
// than to one field.
const FormErrorKey = ""

// FieldError is one message attached to a field path.
type FieldError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	// Issue is the validation issue the error was built from, if any.
	Issue *schema.Issue `json:"-"`
}

// NewFieldError returns an error that is not tied to a validation issue,
// typically one reported by a server.
func NewFieldError(errType, message string) FieldError {
	return FieldError{Type: errType, Message: message}
}

// FromIssue converts a validation issue into a FieldError keeping a copy
// of the issue for callers that need the offending input.
func FromIssue(issue schema.Issue) FieldError {
	source := issue
	source.Path = issue.Path.Append()
	return FieldError{Type: issue.Type, Message: issue.Message, Issue: &source}
}

// Errors maps canonical field paths to their ordered error lists. Keys with
// no errors are never present.
type Errors map[string][]FieldError

// Has reports whether name has at least one error.
func (e Errors) Has(name string) bool {
	return len(e[fieldpath.Canonical(name)]) > 0
}

// Messages returns the messages for name in insertion order.
func (e Errors) Messages(name string) []string {
	list := e[fieldpath.Canonical(name)]
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = item.Message
	}
	return out
}

// groupIssues builds the error set a validation run produces.
func groupIssues(issues []schema.Issue) Errors {
	out := make(Errors, len(issues))
	for _, issue := range issues {
		key := issue.Path.String()
		out[key] = append(out[key], FromIssue(issue))
	}
	return out
}

func cloneErrors(src Errors) Errors {
	out := make(Errors, len(src))
	for key, list := range src {
		if len(list) == 0 {
			continue
		}
		out[key] = append([]FieldError(nil), list...)
	}
	return out
}
