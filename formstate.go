// Package formstate is the entry point for loading form definitions and
// serving them through the bundled bindings. The building blocks live in
// pkg/: form holds the store, formdef the definition format, and
// binding/httpform and binding/prompt the HTTP and terminal front ends.
package formstate

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formstate/internal/loader"
	"github.com/goliatone/go-formstate/pkg/binding/httpform"
	"github.com/goliatone/go-formstate/pkg/binding/prompt"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/formdef"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// Store aliases form.Store for callers that only import the root package.
type Store = form.Store

// Form aliases formdef.Form.
type Form = formdef.Form

// LoaderOption configures the loader returned by NewLoader.
type LoaderOption = loader.Option

var (
	// WithFileSystem resolves fs sources against files.
	WithFileSystem = loader.WithFileSystem
	// WithHTTPClient enables URL sources through client.
	WithHTTPClient = loader.WithHTTPClient
	// WithHTTPFallback enables URL sources with a default client.
	WithHTTPFallback = loader.WithHTTPFallback
)

// NewLoader constructs a loader using the internal implementation while
// keeping the concrete type hidden from consumers.
func NewLoader(options ...LoaderOption) schema.Loader {
	return loader.New(options...)
}

// New creates a store. It mirrors form.New.
func New(initialValues map[string]any, opts ...form.Option) *Store {
	return form.New(initialValues, opts...)
}

// LoadForm reads the definition behind src and builds it. A nil loader
// reads plain files only.
func LoadForm(ctx context.Context, l schema.Loader, src schema.Source, opts ...formdef.BuildOption) (*Form, error) {
	if l == nil {
		l = NewLoader()
	}
	def, err := formdef.Load(ctx, l, src)
	if err != nil {
		return nil, err
	}
	return def.Build(ctx, append([]formdef.BuildOption{formdef.WithLoader(l)}, opts...)...)
}

// SessionFactory builds a fresh store from def for every HTTP session.
func SessionFactory(def *formdef.Definition, opts ...formdef.BuildOption) httpform.Factory {
	return func(ctx context.Context) (*form.Store, []schema.Field, error) {
		built, err := def.Build(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("formstate: build %s: %w", def.ID, err)
		}
		return built.Store, built.Fields, nil
	}
}

// NewHandler serves def over HTTP with one store per session.
func NewHandler(def *formdef.Definition, build []formdef.BuildOption, opts ...httpform.OptionFn) *httpform.Handler {
	return httpform.NewHandler(SessionFactory(def, build...), opts...)
}

// Fill prompts for the visible fields of f in the terminal and submits the
// store.
func Fill(ctx context.Context, f *Form, opts ...prompt.Option) (prompt.Result, error) {
	if f == nil {
		return prompt.Result{}, fmt.Errorf("formstate: form is nil")
	}
	opts = append([]prompt.Option{prompt.WithFieldFilter(f.Visible)}, opts...)
	return prompt.New(opts...).Fill(ctx, f.Store, f.Fields)
}
