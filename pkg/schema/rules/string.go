package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// emailPattern accepts the common address shapes and rejects quoted local
// parts and IP literals.
var emailPattern = regexp.MustCompile(`(?i)^[\w+-]+(?:\.[\w+-]+)*@[\da-z]+(?:[.-][\da-z]+)*\.[a-z]{2,}$`)

// StringCheck is one step of a string pipe. It may transform the value and
// may reject it.
type StringCheck struct {
	name  string
	apply func(string) (string, *Failure)
}

// CheckString builds a custom StringCheck. The name is reported in field
// descriptors and should match the Failure type the check produces.
func CheckString(name string, fn func(string) (string, *Failure)) StringCheck {
	return StringCheck{name: name, apply: fn}
}

// Email rejects values that are not e-mail addresses.
func Email() StringCheck {
	return CheckString("email", func(v string) (string, *Failure) {
		if emailPattern.MatchString(v) {
			return v, nil
		}
		return v, &Failure{Type: "email", Message: "Invalid email: Received " + strconv.Quote(v)}
	})
}

// MinLength rejects values shorter than n characters.
func MinLength(n int) StringCheck {
	return CheckString("min_length", func(v string) (string, *Failure) {
		if got := utf8.RuneCountInString(v); got < n {
			return v, &Failure{Type: "min_length", Message: fmt.Sprintf("Invalid length: Expected >=%d but received %d", n, got)}
		}
		return v, nil
	})
}

// MaxLength rejects values longer than n characters.
func MaxLength(n int) StringCheck {
	return CheckString("max_length", func(v string) (string, *Failure) {
		if got := utf8.RuneCountInString(v); got > n {
			return v, &Failure{Type: "max_length", Message: fmt.Sprintf("Invalid length: Expected <=%d but received %d", n, got)}
		}
		return v, nil
	})
}

// NonEmpty rejects the empty string.
func NonEmpty() StringCheck {
	return CheckString("non_empty", func(v string) (string, *Failure) {
		if v == "" {
			return v, &Failure{Type: "non_empty", Message: "Invalid length: Expected !0 but received 0"}
		}
		return v, nil
	})
}

// Regex rejects values that do not match re.
func Regex(re *regexp.Regexp) StringCheck {
	return CheckString("regex", func(v string) (string, *Failure) {
		if re.MatchString(v) {
			return v, nil
		}
		return v, &Failure{Type: "regex", Message: fmt.Sprintf("Invalid format: Expected /%s/ but received %s", re.String(), strconv.Quote(v))}
	})
}

// Trim strips surrounding whitespace before later checks run.
func Trim() StringCheck {
	return CheckString("trim", func(v string) (string, *Failure) {
		return strings.TrimSpace(v), nil
	})
}

// StringSchema validates string values.
type StringSchema struct {
	checks []StringCheck
}

// String returns a schema accepting strings and running checks in order.
func String(checks ...StringCheck) *StringSchema {
	return &StringSchema{checks: checks}
}

func (s *StringSchema) run(st *state, path fieldpath.Path, input any, present bool) any {
	value, ok := input.(string)
	if !ok {
		st.fail(path, input, typeFailure("string", input, present))
		return input
	}
	for _, check := range s.checks {
		if check.apply == nil {
			continue
		}
		next, failure := check.apply(value)
		st.fail(path, value, failure)
		value = next
	}
	return value
}

func (s *StringSchema) describe(name string) schema.Field {
	field := schema.Field{Name: name, Type: schema.FieldTypeString}
	for _, check := range s.checks {
		switch check.name {
		case "email":
			field.Format = "email"
		case "min_length", "non_empty":
			field.Required = true
		}
	}
	return field
}

// PicklistSchema accepts one of a fixed set of strings.
type PicklistSchema struct {
	options []string
}

// Picklist returns a schema accepting only the given options.
func Picklist(options ...string) *PicklistSchema {
	return &PicklistSchema{options: append([]string(nil), options...)}
}

func (s *PicklistSchema) run(st *state, path fieldpath.Path, input any, present bool) any {
	value, ok := input.(string)
	if ok {
		for _, option := range s.options {
			if option == value {
				return value
			}
		}
	}
	quoted := make([]string, 0, len(s.options))
	for _, option := range s.options {
		quoted = append(quoted, strconv.Quote(option))
	}
	st.fail(path, input, &Failure{
		Type:    "picklist",
		Message: fmt.Sprintf("Invalid type: Expected %s but received %s", strings.Join(quoted, " | "), received(input, present)),
	})
	return input
}

func (s *PicklistSchema) describe(name string) schema.Field {
	enum := make([]any, 0, len(s.options))
	for _, option := range s.options {
		enum = append(enum, option)
	}
	return schema.Field{Name: name, Type: schema.FieldTypeString, Enum: enum, Required: true}
}
