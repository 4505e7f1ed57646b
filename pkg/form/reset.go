package form

import "fmt"

// ResetOption configures Reset and ResetField.
type ResetOption func(*resetConfig)

type resetConfig struct {
	initialValues    map[string]any
	hasInitialValues bool
	initialValue     any
	hasInitialValue  bool
	keepValues       bool
	keepErrors       bool
}

// WithInitialValues replaces the whole reset baseline before Reset applies
// it. ResetField ignores it.
func WithInitialValues(values map[string]any) ResetOption {
	return func(c *resetConfig) {
		c.initialValues = values
		c.hasInitialValues = true
	}
}

// WithInitialValue replaces the baseline of one field before ResetField
// applies it. A nil value is a valid baseline. Reset ignores it.
func WithInitialValue(value any) ResetOption {
	return func(c *resetConfig) {
		c.initialValue = value
		c.hasInitialValue = true
	}
}

// KeepValues leaves the current values untouched.
func KeepValues() ResetOption {
	return func(c *resetConfig) {
		c.keepValues = true
	}
}

// KeepErrors leaves the current errors untouched.
func KeepErrors() ResetOption {
	return func(c *resetConfig) {
		c.keepErrors = true
	}
}

func newResetConfig(opts []ResetOption) resetConfig {
	var cfg resetConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Reset restores the values to the baseline and clears every error.
func (s *Store) Reset(opts ...ResetOption) {
	cfg := newResetConfig(opts)

	s.mu.Lock()
	if cfg.hasInitialValues {
		s.initial = cloneValues(cfg.initialValues)
	}
	var what What
	if !cfg.keepValues {
		s.values = cloneValues(s.initial)
		what |= ChangedValues
	}
	if !cfg.keepErrors {
		s.errors = make(Errors)
		what |= ChangedErrors
	}
	n := s.changeLocked(what)
	s.mu.Unlock()
	n.send()
}

// ResetField restores one field to its baseline, when the baseline has a
// value at that path, and clears the field's errors. Sibling fields are
// not touched.
func (s *Store) ResetField(name string, opts ...ResetOption) error {
	path, err := parseFieldPath(name)
	if err != nil {
		return fmt.Errorf("form: reset field: %w", err)
	}
	cfg := newResetConfig(opts)

	s.mu.Lock()
	if cfg.hasInitialValue {
		if err := path.Set(s.initial, deepCopy(cfg.initialValue)); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("form: reset field %q: %w", name, err)
		}
	}
	var what What
	if !cfg.keepValues {
		if baseline, ok := path.Get(s.initial); ok {
			if err := path.Set(s.values, deepCopy(baseline)); err != nil {
				s.mu.Unlock()
				return fmt.Errorf("form: reset field %q: %w", name, err)
			}
			what |= ChangedValues
		}
	}
	if !cfg.keepErrors {
		key := path.String()
		if _, ok := s.errors[key]; ok {
			delete(s.errors, key)
			what |= ChangedErrors
		}
	}
	n := s.changeLocked(what)
	s.mu.Unlock()
	n.send()
	return nil
}
