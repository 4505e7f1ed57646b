package form

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// Methods is the part of the store a submit handler may use.
type Methods interface {
	Update(values map[string]any)
	UpdateField(name string, value any) error
	Reset(opts ...ResetOption)
	ResetField(name string, opts ...ResetOption) error
	AddError(name string, err FieldError)
}

// Store holds the state of one form. It is safe for concurrent use.
type Store struct {
	cfg config

	mu         sync.RWMutex
	values     map[string]any
	initial    map[string]any
	errors     Errors
	submitting int
	output     any
	version    uint64
	// validation numbers Validate calls so an overtaken run is not applied.
	validation uint64
	guarded    bool

	subscribers    []subscriber
	nextSubscriber uint64
}

var _ Methods = (*Store)(nil)

// New returns a store whose values and reset baseline are copies of
// initialValues.
func New(initialValues map[string]any, opts ...Option) *Store {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	initial := cloneValues(initialValues)
	return &Store{
		cfg:     cfg,
		values:  cloneValues(initial),
		initial: initial,
		errors:  make(Errors),
	}
}

// Validator returns the configured validator.
func (s *Store) Validator() schema.Validator {
	return s.cfg.validator
}

// Fields returns the field descriptors of the configured validator, or nil
// when it cannot describe itself.
func (s *Store) Fields() []schema.Field {
	if d, ok := s.cfg.validator.(schema.Describer); ok {
		return d.Fields()
	}
	return nil
}

// Values returns a copy of the current values.
func (s *Store) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneValues(s.values)
}

// Value returns a copy of the value at name. The boolean is false when the
// path does not resolve or does not parse.
func (s *Store) Value(name string) (any, bool) {
	path, err := fieldpath.Parse(name)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := path.Get(s.values)
	if !ok {
		return nil, false
	}
	return deepCopy(value), true
}

// InitialValues returns a copy of the reset baseline.
func (s *Store) InitialValues() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneValues(s.initial)
}

// Errors returns a copy of the error set.
func (s *Store) Errors() Errors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneErrors(s.errors)
}

// FieldErrors returns the errors of one field path, never nil.
func (s *Store) FieldErrors(name string) []FieldError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FieldError{}, s.errors[fieldpath.Canonical(name)]...)
}

// IsSubmitting reports whether a submit handler is running.
func (s *Store) IsSubmitting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submitting > 0
}

// Output returns a copy of the output of the last applied validation, or
// nil before the first one.
func (s *Store) Output() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.output)
}

// Snapshot returns a copy of the observable state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Values:       cloneValues(s.values),
		Errors:       cloneErrors(s.errors),
		IsSubmitting: s.submitting > 0,
		Version:      s.version,
	}
}

// Update replaces all values. Errors are left untouched.
func (s *Store) Update(values map[string]any) {
	next := cloneValues(values)
	s.mu.Lock()
	s.values = next
	n := s.changeLocked(ChangedValues)
	s.mu.Unlock()
	n.send()
}

// UpdateField sets the value at name, creating intermediate objects and
// arrays as the path requires. Errors are left untouched.
func (s *Store) UpdateField(name string, value any) error {
	path, err := parseFieldPath(name)
	if err != nil {
		return fmt.Errorf("form: update field: %w", err)
	}
	next := deepCopy(value)

	s.mu.Lock()
	if err := path.Set(s.values, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("form: update field %q: %w", name, err)
	}
	n := s.changeLocked(ChangedValues)
	s.mu.Unlock()
	n.send()
	return nil
}

// AddError appends err to the errors of name. The empty name holds
// form-level errors.
func (s *Store) AddError(name string, err FieldError) {
	key := fieldpath.Canonical(name)
	s.mu.Lock()
	s.errors[key] = append(s.errors[key], err)
	n := s.changeLocked(ChangedErrors)
	s.mu.Unlock()
	n.send()
}

// ClearErrors removes the errors of the given field paths, or every error
// when called without names.
func (s *Store) ClearErrors(names ...string) {
	s.mu.Lock()
	changed := false
	if len(names) == 0 {
		changed = len(s.errors) > 0
		s.errors = make(Errors)
	}
	for _, name := range names {
		key := fieldpath.Canonical(name)
		if _, ok := s.errors[key]; ok {
			delete(s.errors, key)
			changed = true
		}
	}
	var n notification
	if changed {
		n = s.changeLocked(ChangedErrors)
	}
	s.mu.Unlock()
	n.send()
}

// Validate parses the current values with the configured validator,
// replaces the whole error set with the reported issues grouped by field
// path and stores the output for Submit. Errors added with AddError are
// discarded too. The returned error is reserved for validator failures, in
// which case errors and output are left as they were.
//
// When a newer Validate call starts before this one finishes, this call's
// result is returned but not applied.
func (s *Store) Validate(ctx context.Context) (bool, error) {
	valid, _, err := s.validate(ctx)
	return valid, err
}

func (s *Store) validate(ctx context.Context) (bool, any, error) {
	s.mu.Lock()
	s.validation++
	seq := s.validation
	input := cloneValues(s.values)
	s.mu.Unlock()

	result, err := s.cfg.validator.Parse(ctx, input)
	if err != nil {
		s.cfg.logger.Error("form validation failed", "error", err)
		return false, nil, fmt.Errorf("form: validate: %w", err)
	}
	valid := result.Valid && len(result.Issues) == 0
	grouped := groupIssues(result.Issues)

	s.mu.Lock()
	if seq != s.validation {
		s.mu.Unlock()
		s.cfg.logger.Debug("discarding overtaken validation result", "run", seq)
		return valid, result.Output, nil
	}
	s.output = result.Output
	s.errors = grouped
	n := s.changeLocked(ChangedErrors)
	s.mu.Unlock()
	n.send()
	return valid, result.Output, nil
}

// Submit validates the form and, when it is valid, runs the submit handler
// with the parsed output while IsSubmitting reports true. Handler errors
// and panics are logged and swallowed. The boolean reports whether the
// values were valid and the handler step ran.
func (s *Store) Submit(ctx context.Context) (bool, error) {
	if s.cfg.guard {
		s.mu.Lock()
		if s.guarded {
			s.mu.Unlock()
			return false, ErrSubmitInProgress
		}
		s.guarded = true
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.guarded = false
			s.mu.Unlock()
		}()
	}

	valid, output, err := s.validate(ctx)
	if err != nil {
		return false, err
	}
	if !valid {
		return false, nil
	}

	s.setSubmitting(1)
	defer s.setSubmitting(-1)
	s.runHandler(ctx, deepCopy(output))
	return true, nil
}

func (s *Store) setSubmitting(delta int) {
	s.mu.Lock()
	before := s.submitting > 0
	s.submitting += delta
	var n notification
	if before != (s.submitting > 0) {
		n = s.changeLocked(ChangedSubmitting)
	}
	s.mu.Unlock()
	n.send()
}

func (s *Store) runHandler(ctx context.Context, output any) {
	if s.cfg.submit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.cfg.logger.Warn("form submit handler panicked", "panic", r)
		}
	}()
	if err := s.cfg.submit(ctx, output, methods{s}); err != nil {
		s.cfg.logger.Warn("form submit handler failed", "error", err)
	}
}

// methods hides everything but Methods from submit handlers.
type methods struct{ s *Store }

func (m methods) Update(values map[string]any) { m.s.Update(values) }

func (m methods) UpdateField(name string, value any) error {
	return m.s.UpdateField(name, value)
}

func (m methods) Reset(opts ...ResetOption) { m.s.Reset(opts...) }

func (m methods) ResetField(name string, opts ...ResetOption) error {
	return m.s.ResetField(name, opts...)
}

func (m methods) AddError(name string, err FieldError) { m.s.AddError(name, err) }

// parseFieldPath parses name and rejects the root path, which has no
// single value to write.
func parseFieldPath(name string) (fieldpath.Path, error) {
	path, err := fieldpath.Parse(name)
	if err != nil {
		return nil, err
	}
	if path.IsRoot() {
		return nil, fmt.Errorf("%w: empty field name", ErrInvalidPath)
	}
	return path, nil
}
