// Package prompt fills a form.Store from the terminal. Fields are prompted
// in descriptor order, the form is submitted, and only the fields that came
// back with errors are asked again.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// Filler drives a store through prompts.
type Filler struct {
	driver      PromptDriver
	maxAttempts int
	theme       Theme
	out         io.Writer
	logger      *slog.Logger
	filter      FieldFilter
}

// Result reports how a Fill ended.
type Result struct {
	Submitted bool
	Attempts  int
	// Errors holds the errors left on the store when Fill returned,
	// including ones a submit handler added after a successful submission.
	Errors form.Errors
}

// New returns a Filler using the survey driver unless one is supplied.
func New(options ...Option) *Filler {
	f := &Filler{
		maxAttempts: DefaultMaxAttempts,
		theme:       Theme{ErrorPrefix: "✗ "},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver(f.out)
	}
	return f
}

// Fill prompts for fields, writes each answer through the store and submits.
// When the submission is rejected the errors are printed and the failing
// fields are asked again, up to the configured number of attempts. When the
// field filter hides every failing field, the visible fields are asked
// instead, and ErrNothingToAsk is returned if there are none.
func (f *Filler) Fill(ctx context.Context, store *form.Store, fields []schema.Field) (Result, error) {
	if store == nil {
		return Result{}, errors.New("prompt: store is required")
	}
	if len(fields) == 0 {
		fields = store.Fields()
	}
	leaves := schema.Leaves(fields)
	pending := leaves

	var result Result
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		result.Attempts = attempt
		asked, err := f.askVisible(ctx, store, pending)
		if err != nil {
			return result, err
		}
		if asked == 0 && attempt > 1 {
			// Every failing field is hidden; offer the visible ones so the
			// answers that hide them can change.
			if asked, err = f.askVisible(ctx, store, leaves); err != nil {
				return result, err
			}
			if asked == 0 {
				return result, ErrNothingToAsk
			}
		}

		submitted, err := store.Submit(ctx)
		if err != nil {
			return result, fmt.Errorf("prompt: submit: %w", err)
		}
		result.Errors = store.Errors()
		if submitted {
			result.Submitted = true
			f.report(ctx, result.Errors, leaves)
			return result, nil
		}

		f.logger.Debug("form rejected", "attempt", attempt, "errors", len(result.Errors))
		f.report(ctx, result.Errors, leaves)
		pending = failing(leaves, result.Errors)
	}
	return result, fmt.Errorf("%w (%d attempts)", ErrTooManyAttempts, f.maxAttempts)
}

// askVisible prompts for the fields the filter lets through, checking each
// against the values as answered so far. It returns how many were asked.
func (f *Filler) askVisible(ctx context.Context, store *form.Store, fields []schema.Field) (int, error) {
	asked := 0
	for _, field := range fields {
		if f.filter != nil && !f.filter(field, store.Values()) {
			continue
		}
		if err := f.ask(ctx, store, field); err != nil {
			return asked, err
		}
		asked++
	}
	return asked, nil
}

func (f *Filler) ask(ctx context.Context, store *form.Store, field schema.Field) error {
	accessor, err := store.Field(field.Name)
	if err != nil {
		return err
	}
	current := accessor.Value()
	if current == nil {
		current = field.Default
	}
	message := field.DisplayLabel()
	if errs := accessor.Errors(); len(errs) > 0 {
		message = fmt.Sprintf("%s (%s)", message, errs[0].Message)
	}

	value, err := f.promptValue(ctx, field, message, current)
	if err != nil {
		return err
	}
	return accessor.Update(value)
}

func (f *Filler) promptValue(ctx context.Context, field schema.Field, message string, current any) (any, error) {
	switch {
	case field.Type == schema.FieldTypeBoolean:
		def, _ := current.(bool)
		return f.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: def, Help: field.Description})

	case len(field.Enum) > 0 && field.Type != schema.FieldTypeArray:
		options := stringify(field.Enum)
		idx, err := f.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      options,
			DefaultIndex: indexOf(options, display(current)),
			Help:         field.Description,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(field.Enum) {
			return nil, fmt.Errorf("prompt: %s: selection out of range", field.Name)
		}
		return field.Enum[idx], nil

	case field.Type == schema.FieldTypeArray && field.Items != nil && len(field.Items.Enum) > 0:
		options := stringify(field.Items.Enum)
		var defaults []int
		if list, ok := current.([]any); ok {
			defaults = indicesOf(options, stringify(list))
		}
		indices, err := f.driver.MultiSelect(ctx, SelectConfig{
			Message:  message,
			Options:  options,
			Defaults: defaults,
			Help:     field.Description,
		})
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(indices))
		for _, idx := range indices {
			if idx >= 0 && idx < len(field.Items.Enum) {
				out = append(out, field.Items.Enum[idx])
			}
		}
		return out, nil
	}

	cfg := InputConfig{
		Message: message,
		Default: display(current),
		Help:    field.Description,
		Validator: func(raw string) error {
			_, err := field.Coerce(raw)
			return err
		},
	}
	var (
		raw string
		err error
	)
	if field.IsSecret() {
		cfg.Default = ""
		raw, err = f.driver.Password(ctx, cfg)
		// An empty answer keeps a secret entered in an earlier round.
		if err == nil && raw == "" {
			if kept, ok := current.(string); ok && kept != "" {
				return kept, nil
			}
		}
	} else {
		raw, err = f.driver.Input(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	return field.Coerce(raw)
}

// report prints the errors, field by field in descriptor order, form-level
// and undescribed paths last.
func (f *Filler) report(ctx context.Context, errs form.Errors, leaves []schema.Field) {
	if len(errs) == 0 {
		return
	}
	printed := make(map[string]bool, len(errs))
	for _, leaf := range leaves {
		for name, list := range errs {
			if printed[name] || !covers(leaf.Name, name) {
				continue
			}
			printed[name] = true
			for _, fe := range list {
				_ = f.driver.Info(ctx, fmt.Sprintf("%s%s: %s", f.theme.ErrorPrefix, leaf.DisplayLabel(), fe.Message))
			}
		}
	}

	rest := make([]string, 0, len(errs))
	for name := range errs {
		if !printed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		label := name
		if label == form.FormErrorKey {
			label = "form"
		}
		for _, fe := range errs[name] {
			_ = f.driver.Info(ctx, fmt.Sprintf("%s%s: %s", f.theme.ErrorPrefix, label, fe.Message))
		}
	}
}

// failing returns the leaves that own at least one error. When no leaf
// matches, for example with only form-level errors, every leaf is asked
// again.
func failing(leaves []schema.Field, errs form.Errors) []schema.Field {
	var out []schema.Field
	for _, leaf := range leaves {
		for name := range errs {
			if covers(leaf.Name, name) {
				out = append(out, leaf)
				break
			}
		}
	}
	if len(out) == 0 {
		return leaves
	}
	return out
}

// covers reports whether an error keyed by name belongs to the field: the
// field itself or anything below it, such as an item of an array field.
func covers(field, name string) bool {
	if name == form.FormErrorKey {
		return false
	}
	fieldPath, err := fieldpath.Parse(field)
	if err != nil {
		return false
	}
	errPath, err := fieldpath.Parse(name)
	if err != nil {
		return false
	}
	return errPath.HasPrefix(fieldPath)
}

func display(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []any:
		return strings.Join(stringify(typed), ", ")
	default:
		return fmt.Sprint(typed)
	}
}

func stringify(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out
}
