package form

import (
	"fmt"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
)

// Field is a live accessor bound to one field path. Every read goes back to
// the store, so a Field never goes stale.
type Field struct {
	store *Store
	path  fieldpath.Path
	name  string
}

// Field returns an accessor for name. It fails only when name does not
// parse; the path does not need to hold a value yet.
func (s *Store) Field(name string) (*Field, error) {
	path, err := fieldpath.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("form: field: %w", err)
	}
	return &Field{store: s, path: path, name: path.String()}, nil
}

// Name returns the canonical field path.
func (f *Field) Name() string { return f.name }

// Path returns the parsed field path.
func (f *Field) Path() fieldpath.Path { return f.path.Append() }

// Value returns a copy of the current value, or nil when the path holds no
// value.
func (f *Field) Value() any {
	value, _ := f.Lookup()
	return value
}

// Lookup returns a copy of the current value or ErrFieldNotFound.
func (f *Field) Lookup() (any, error) {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	value, ok := f.path.Get(f.store.values)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, f.name)
	}
	return deepCopy(value), nil
}

// Initial returns a copy of the baseline value for this field.
func (f *Field) Initial() (any, bool) {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	value, ok := f.path.Get(f.store.initial)
	if !ok {
		return nil, false
	}
	return deepCopy(value), true
}

// Errors returns the field's errors, never nil.
func (f *Field) Errors() []FieldError {
	return f.store.FieldErrors(f.name)
}

// Update sets the field's value.
func (f *Field) Update(value any) error {
	return f.store.UpdateField(f.name, value)
}

// Reset restores the field to its baseline. See Store.ResetField.
func (f *Field) Reset(opts ...ResetOption) error {
	return f.store.ResetField(f.name, opts...)
}

// AddError appends an error to the field.
func (f *Field) AddError(err FieldError) {
	f.store.AddError(f.name, err)
}

// ClearErrors removes the field's errors.
func (f *Field) ClearErrors() {
	f.store.ClearErrors(f.name)
}
