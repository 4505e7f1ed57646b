// Package formdef loads form definition files. A definition names the form,
// its initial values and the schema that validates it, and can override how
// individual fields are presented:
//
//	id: signup
//	title: Create an account
//	initialValues:
//	  role: member
//	schema:
//	  kind: jsonschema
//	  source: ./signup.schema.json
//	fields:
//	  password:
//	    label: Password
//	    secret: true
//	  company:
//	    visibleWhen: role == "business"
//
// Build turns a definition into a configured form.Store.
package formdef

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/pkg/condition"
	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// SchemaKind selects the validation engine of a definition.
type SchemaKind string

const (
	SchemaKindNone       SchemaKind = "none"
	SchemaKindJSONSchema SchemaKind = "jsonschema"
	SchemaKindOpenAPI    SchemaKind = "openapi"
)

// ErrUnknownSchemaKind is returned for schema kinds Build cannot construct.
var ErrUnknownSchemaKind = errors.New("formdef: unknown schema kind")

// Definition is a parsed form definition file.
type Definition struct {
	ID            string                 `json:"id" yaml:"id"`
	Title         string                 `json:"title,omitempty" yaml:"title,omitempty"`
	Description   string                 `json:"description,omitempty" yaml:"description,omitempty"`
	InitialValues map[string]any         `json:"initialValues,omitempty" yaml:"initialValues,omitempty"`
	Schema        SchemaConfig           `json:"schema" yaml:"schema"`
	Fields        map[string]FieldConfig `json:"fields,omitempty" yaml:"fields,omitempty"`

	source schema.Source
}

// SchemaConfig points at the schema that validates the form. Source is a
// path or URL resolved relative to the definition; Inline embeds the
// document instead.
type SchemaConfig struct {
	Kind      SchemaKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Source    string     `json:"source,omitempty" yaml:"source,omitempty"`
	Inline    any        `json:"inline,omitempty" yaml:"inline,omitempty"`
	Operation string     `json:"operation,omitempty" yaml:"operation,omitempty"`
}

// FieldConfig overrides the descriptor of one field. Fields that the schema
// does not describe are added, which lets definitions without a schema
// still list their inputs.
type FieldConfig struct {
	Label       string           `json:"label,omitempty" yaml:"label,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Type        schema.FieldType `json:"type,omitempty" yaml:"type,omitempty"`
	Format      string           `json:"format,omitempty" yaml:"format,omitempty"`
	Secret      *bool            `json:"secret,omitempty" yaml:"secret,omitempty"`
	Required    *bool            `json:"required,omitempty" yaml:"required,omitempty"`
	Enum        []any            `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default     any              `json:"default,omitempty" yaml:"default,omitempty"`
	Hidden      bool             `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Order       *int             `json:"order,omitempty" yaml:"order,omitempty"`
	// VisibleWhen is a condition over the form values; the field is only
	// shown while it holds. See package condition for the syntax.
	VisibleWhen string `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`

	visible *condition.Condition
}

// Source returns where the definition was read from, or nil for
// definitions parsed from memory.
func (d *Definition) Source() schema.Source { return d.source }

// Load reads and parses the definition at src.
func Load(ctx context.Context, l schema.Loader, src schema.Source) (*Definition, error) {
	if l == nil {
		return nil, errors.New("formdef: loader is required")
	}
	doc, err := l.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("formdef: load %s: %w", src.Location(), err)
	}
	def, err := Parse(doc.Raw(), src.Location())
	if err != nil {
		return nil, err
	}
	def.source = src
	return def, nil
}

// Parse decodes a JSON or YAML definition. name is used in error messages.
func Parse(data []byte, name string) (*Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("formdef: file %s is empty", name)
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		def = Definition{}
		if yerr := yaml.Unmarshal(data, &def); yerr != nil {
			return nil, fmt.Errorf("formdef: parse %s: invalid JSON or YAML: %w", name, yerr)
		}
	}
	if err := def.normalise(name); err != nil {
		return nil, err
	}
	return &def, nil
}

func (d *Definition) normalise(name string) error {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return fmt.Errorf("formdef: file %s has no id", name)
	}

	kind := SchemaKind(strings.ToLower(strings.TrimSpace(string(d.Schema.Kind))))
	switch {
	case kind == "" && d.Schema.Operation != "":
		kind = SchemaKindOpenAPI
	case kind == "" && (d.Schema.Source != "" || d.Schema.Inline != nil):
		kind = SchemaKindJSONSchema
	case kind == "":
		kind = SchemaKindNone
	}
	switch kind {
	case SchemaKindNone:
	case SchemaKindJSONSchema, SchemaKindOpenAPI:
		if d.Schema.Source == "" && d.Schema.Inline == nil {
			return fmt.Errorf("formdef: %s: %s schema needs a source or an inline document", d.ID, kind)
		}
		if d.Schema.Source != "" && d.Schema.Inline != nil {
			return fmt.Errorf("formdef: %s: schema source and inline are mutually exclusive", d.ID)
		}
		if kind == SchemaKindOpenAPI && strings.TrimSpace(d.Schema.Operation) == "" {
			return fmt.Errorf("formdef: %s: openapi schema needs an operation", d.ID)
		}
	default:
		return fmt.Errorf("%w: %q in %s", ErrUnknownSchemaKind, kind, d.ID)
	}
	d.Schema.Kind = kind

	if len(d.Fields) > 0 {
		fields := make(map[string]FieldConfig, len(d.Fields))
		for key, cfg := range d.Fields {
			path, err := fieldpath.Parse(strings.TrimSpace(key))
			if err != nil || path.IsRoot() {
				return fmt.Errorf("formdef: %s: invalid field key %q", d.ID, key)
			}
			canonical := path.String()
			if _, exists := fields[canonical]; exists {
				return fmt.Errorf("formdef: %s: duplicate field path %q", d.ID, canonical)
			}
			if cfg.visible, err = condition.Compile(cfg.VisibleWhen); err != nil {
				return fmt.Errorf("formdef: %s: field %s: %w", d.ID, canonical, err)
			}
			fields[canonical] = cfg
		}
		d.Fields = fields
	}
	return nil
}

// inlineDocument renders the inline schema as JSON.
func (d *Definition) inlineDocument() ([]byte, error) {
	raw, err := json.Marshal(d.Schema.Inline)
	if err != nil {
		return nil, fmt.Errorf("formdef: %s: encode inline schema: %w", d.ID, err)
	}
	return raw, nil
}
