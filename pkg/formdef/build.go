package formdef

import (
	"context"
	"fmt"
	"sort"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/jsonschema"
	"github.com/goliatone/go-formstate/pkg/openapi"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	loader     schema.Loader
	storeOpts  []form.Option
	validators map[SchemaKind]ValidatorFactory
}

// ValidatorFactory builds the validator for a schema kind from the loaded
// or inline schema document.
type ValidatorFactory func(ctx context.Context, def *Definition, doc schema.Document, l schema.Loader) (schema.Validator, error)

// WithLoader resolves schema sources. Build fails for definitions with a
// schema source when no loader is configured.
func WithLoader(l schema.Loader) BuildOption {
	return func(c *buildConfig) {
		c.loader = l
	}
}

// WithStoreOptions passes options such as form.WithSubmit to the store.
func WithStoreOptions(opts ...form.Option) BuildOption {
	return func(c *buildConfig) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

// WithValidatorFactory registers or replaces the engine for a schema kind.
func WithValidatorFactory(kind SchemaKind, factory ValidatorFactory) BuildOption {
	return func(c *buildConfig) {
		if factory != nil {
			c.validators[kind] = factory
		}
	}
}

// Form is a built definition.
type Form struct {
	Definition *Definition
	Store      *form.Store
	// Fields are the leaf descriptors after overrides, in presentation
	// order. Hidden fields are left out.
	Fields []schema.Field
}

// Build compiles the schema of d and returns a store seeded with the
// schema defaults overlaid by the definition's initial values.
func (d *Definition) Build(ctx context.Context, opts ...BuildOption) (*Form, error) {
	cfg := buildConfig{validators: map[SchemaKind]ValidatorFactory{
		SchemaKindJSONSchema: jsonSchemaValidator,
		SchemaKindOpenAPI:    openAPIValidator,
	}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	validator, err := d.validator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var described []schema.Field
	if describer, ok := validator.(schema.Describer); ok {
		described = describer.Fields()
	}
	fields := d.applyOverrides(schema.Leaves(described))

	initial := mergeValues(schema.InitialValues(described), d.InitialValues)
	for _, field := range fields {
		path, err := fieldpath.Parse(field.Name)
		if err != nil || path.Has(initial) {
			continue
		}
		zero, ok := schema.InitialValues([]schema.Field{{Name: "v", Type: field.Type, Default: field.Default}})["v"]
		if !ok {
			continue
		}
		if err := path.Set(initial, zero); err != nil {
			return nil, fmt.Errorf("formdef: %s: initial value for %q: %w", d.ID, field.Name, err)
		}
	}

	storeOpts := append([]form.Option{form.WithSchema(validator)}, cfg.storeOpts...)
	return &Form{
		Definition: d,
		Store:      form.New(initial, storeOpts...),
		Fields:     fields,
	}, nil
}

// Visible reports whether field is shown for values. Fields without a
// visibleWhen condition are always shown.
func (f *Form) Visible(field schema.Field, values map[string]any) bool {
	if f == nil || f.Definition == nil {
		return true
	}
	cfg, ok := f.Definition.Fields[fieldpath.Canonical(field.Name)]
	return !ok || cfg.visible.Eval(values)
}

// VisibleFields returns the fields shown for the current store values.
func (f *Form) VisibleFields() []schema.Field {
	values := f.Store.Values()
	out := make([]schema.Field, 0, len(f.Fields))
	for _, field := range f.Fields {
		if f.Visible(field, values) {
			out = append(out, field)
		}
	}
	return out
}

func (d *Definition) validator(ctx context.Context, cfg buildConfig) (schema.Validator, error) {
	if d.Schema.Kind == SchemaKindNone || d.Schema.Kind == "" {
		return schema.Any(), nil
	}
	factory, ok := cfg.validators[d.Schema.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrUnknownSchemaKind, d.Schema.Kind, d.ID)
	}

	var doc schema.Document
	if d.Schema.Source != "" {
		if cfg.loader == nil {
			return nil, fmt.Errorf("formdef: %s: a loader is required to read %s", d.ID, d.Schema.Source)
		}
		src, err := schema.RelativeTo(d.source, d.Schema.Source)
		if err != nil {
			return nil, fmt.Errorf("formdef: %s: schema source: %w", d.ID, err)
		}
		doc, err = cfg.loader.Load(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("formdef: %s: load schema: %w", d.ID, err)
		}
	} else {
		raw, err := d.inlineDocument()
		if err != nil {
			return nil, err
		}
		src := schema.SourceFromFS(d.ID + ".schema.json")
		if d.source != nil {
			src = d.source
		}
		doc, err = schema.NewDocument(src, raw)
		if err != nil {
			return nil, fmt.Errorf("formdef: %s: inline schema: %w", d.ID, err)
		}
	}

	validator, err := factory(ctx, d, doc, cfg.loader)
	if err != nil {
		return nil, fmt.Errorf("formdef: %s: %w", d.ID, err)
	}
	return validator, nil
}

func jsonSchemaValidator(ctx context.Context, _ *Definition, doc schema.Document, l schema.Loader) (schema.Validator, error) {
	return jsonschema.FromDocument(ctx, doc, l)
}

func openAPIValidator(ctx context.Context, def *Definition, doc schema.Document, l schema.Loader) (schema.Validator, error) {
	return openapi.FromDocument(ctx, doc, def.Schema.Operation, l)
}

// applyOverrides merges field configs into the described leaves, appends
// configured fields the schema does not describe and orders the result.
func (d *Definition) applyOverrides(leaves []schema.Field) []schema.Field {
	seen := make(map[string]bool, len(leaves))
	out := make([]schema.Field, 0, len(leaves)+len(d.Fields))
	for _, leaf := range leaves {
		seen[leaf.Name] = true
		cfg, ok := d.Fields[leaf.Name]
		if ok && cfg.Hidden {
			continue
		}
		if ok {
			leaf = cfg.apply(leaf)
		}
		out = append(out, leaf)
	}

	extra := make([]string, 0, len(d.Fields))
	for name, cfg := range d.Fields {
		if !seen[name] && !cfg.Hidden {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		field := d.Fields[name].apply(schema.Field{Name: name, Type: schema.FieldTypeString})
		out = append(out, field)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return d.order(out[i].Name) < d.order(out[j].Name)
	})
	return out
}

// order ranks fields with an explicit order first; the rest keep their
// relative position.
func (d *Definition) order(name string) int {
	if cfg, ok := d.Fields[name]; ok && cfg.Order != nil {
		return *cfg.Order
	}
	return int(^uint(0) >> 1)
}

func (c FieldConfig) apply(field schema.Field) schema.Field {
	if c.Label != "" {
		field.Label = c.Label
	}
	if c.Description != "" {
		field.Description = c.Description
	}
	if c.Type != "" {
		field.Type = c.Type
	}
	if c.Format != "" {
		field.Format = c.Format
	}
	if c.Secret != nil {
		field.Secret = *c.Secret
	}
	if c.Required != nil {
		field.Required = *c.Required
	}
	if len(c.Enum) > 0 {
		field.Enum = append([]any(nil), c.Enum...)
	}
	if c.Default != nil {
		field.Default = c.Default
	}
	return field
}

// mergeValues overlays src onto dst recursively; src wins for scalars.
func mergeValues(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		nested, isMap := value.(map[string]any)
		existing, hasMap := dst[key].(map[string]any)
		if isMap && hasMap {
			dst[key] = mergeValues(existing, nested)
			continue
		}
		dst[key] = value
	}
	return dst
}
