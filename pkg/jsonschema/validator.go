// Package jsonschema validates form values against JSON Schema documents
// using github.com/santhosh-tekuri/jsonschema/v5. Validation errors are
// flattened into schema.Issue values located by field path, so a store
// configured with this validator groups errors exactly like the native rules
// engine does.
package jsonschema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	jsv "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

const defaultResource = "mem://formstate/schema.json"

// Option configures Compile and Load.
type Option func(*options)

type options struct {
	resource string
	loader   schema.Loader
	ctx      context.Context
	draft    *jsv.Draft
}

// WithResourceName sets the URL the root document is registered under.
// Relative $ref values resolve against it.
func WithResourceName(name string) Option {
	return func(o *options) {
		if strings.TrimSpace(name) != "" {
			o.resource = name
		}
	}
}

// WithLoader resolves external $ref documents through l.
func WithLoader(l schema.Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithDraft sets the draft used for documents without a $schema keyword.
func WithDraft(draft *jsv.Draft) Option {
	return func(o *options) {
		o.draft = draft
	}
}

// Validator implements schema.Validator and schema.Describer for a compiled
// JSON Schema.
type Validator struct {
	compiled *jsv.Schema
}

var (
	_ schema.Validator = (*Validator)(nil)
	_ schema.Describer = (*Validator)(nil)
)

// Compile builds a Validator from a raw JSON Schema document. Format
// assertions are enabled, so "format": "email" rejects invalid addresses.
func Compile(raw []byte, opts ...Option) (*Validator, error) {
	cfg := options{resource: defaultResource, ctx: context.Background()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("jsonschema: schema document is empty")
	}
	raw, err := asJSON(raw)
	if err != nil {
		return nil, err
	}

	compiler := jsv.NewCompiler()
	compiler.AssertFormat = true
	if cfg.draft != nil {
		compiler.Draft = cfg.draft
	}
	if cfg.loader != nil {
		compiler.LoadURL = loadURL(cfg.ctx, cfg.loader)
	}
	if err := compiler.AddResource(cfg.resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("jsonschema: add resource: %w", err)
	}
	compiled, err := compiler.Compile(cfg.resource)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: compile: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Load reads src through l and compiles it. External references are loaded
// through the same loader.
func Load(ctx context.Context, l schema.Loader, src schema.Source, opts ...Option) (*Validator, error) {
	if l == nil {
		return nil, errors.New("jsonschema: loader is required")
	}
	doc, err := l.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: load %s: %w", locationOf(src), err)
	}
	return FromDocument(ctx, doc, l, opts...)
}

// FromDocument compiles an already loaded document. References relative to
// the document resolve through l when it is not nil.
func FromDocument(ctx context.Context, doc schema.Document, l schema.Loader, opts ...Option) (*Validator, error) {
	base := []Option{withContext(ctx)}
	if src := doc.Source(); src != nil {
		base = append(base, WithResourceName(resourceURL(src)))
	}
	if l != nil {
		base = append(base, WithLoader(l))
	}
	return Compile(doc.Raw(), append(base, opts...)...)
}

// asJSON lets schema documents be written in YAML.
func asJSON(raw []byte) ([]byte, error) {
	if json.Valid(raw) {
		return raw, nil
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("jsonschema: parse document: invalid JSON or YAML: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: convert YAML document: %w", err)
	}
	return out, nil
}

func withContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// Parse implements schema.Validator. The output is the input unchanged;
// JSON Schema does not coerce values.
func (v *Validator) Parse(ctx context.Context, input any) (schema.Result, error) {
	if err := ctx.Err(); err != nil {
		return schema.Result{}, err
	}
	instance, err := normalize(input)
	if err != nil {
		return schema.Result{}, fmt.Errorf("jsonschema: normalize input: %w", err)
	}

	err = v.compiled.Validate(instance)
	if err == nil {
		return schema.NewResult(input, nil), nil
	}
	var verr *jsv.ValidationError
	if !errors.As(err, &verr) {
		return schema.Result{}, fmt.Errorf("jsonschema: validate: %w", err)
	}

	var issues []schema.Issue
	collectIssues(verr, instance, input, &issues)
	// properties are visited in map order; keep per-field keyword order.
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Field() < issues[j].Field() })
	return schema.NewResult(input, issues), nil
}

// normalize round-trips input through encoding/json so the engine sees the
// same shapes a decoded request body would have.
func normalize(input any) (any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	return jsv.UnmarshalJSON(bytes.NewReader(raw))
}

func collectIssues(err *jsv.ValidationError, instance, input any, out *[]schema.Issue) {
	if err == nil {
		return
	}
	if len(err.Causes) > 0 {
		for _, cause := range err.Causes {
			collectIssues(cause, instance, input, out)
		}
		return
	}

	path := fieldpath.FromPointer(instance, err.InstanceLocation)
	keyword := lastToken(err.KeywordLocation)

	if keyword == "required" {
		for _, name := range quotedNames(err.Message) {
			*out = append(*out, schema.Issue{
				Type:    "required",
				Message: fmt.Sprintf("missing property %q", name),
				Path:    path.Append(fieldpath.Key(name)),
			})
		}
		return
	}

	issue := schema.Issue{
		Type:    issueType(keyword, err.Message),
		Message: err.Message,
		Path:    path,
	}
	if value, ok := path.Get(input); ok {
		issue.Input = value
	}
	*out = append(*out, issue)
}

func issueType(keyword, message string) string {
	if keyword == "format" {
		if name := formatName(message); name != "" {
			return name
		}
	}
	return schema.KeywordIssueType(keyword)
}

// formatName extracts "email" from messages such as `'x' is not valid 'email'`.
func formatName(message string) string {
	names := quotedNames(message)
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1]
}

// quotedNames returns the single or double quoted words of message in order.
func quotedNames(message string) []string {
	var names []string
	for i := 0; i < len(message); i++ {
		quote := message[i]
		if quote != '\'' && quote != '"' {
			continue
		}
		end := strings.IndexByte(message[i+1:], quote)
		if end < 0 {
			break
		}
		names = append(names, message[i+1:i+1+end])
		i += end + 1
	}
	return names
}

func lastToken(pointer string) string {
	tokens := fieldpath.PointerTokens(pointer)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

func locationOf(src schema.Source) string {
	if src == nil {
		return "<nil>"
	}
	return src.Location()
}

// resourceURL maps a Source onto the URL the compiler registers it under so
// relative references resolve back to the same kind of source.
func resourceURL(src schema.Source) string {
	if src == nil {
		return defaultResource
	}
	switch src.Kind() {
	case schema.SourceKindFile:
		abs, err := filepath.Abs(src.Location())
		if err != nil {
			abs = src.Location()
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	case schema.SourceKindFS:
		return (&url.URL{Scheme: "fs", Path: "/" + strings.TrimPrefix(src.Location(), "/")}).String()
	default:
		return src.Location()
	}
}

func loadURL(ctx context.Context, l schema.Loader) func(string) (io.ReadCloser, error) {
	return func(raw string) (io.ReadCloser, error) {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}
		var src schema.Source
		switch u.Scheme {
		case "file":
			src = schema.SourceFromFile(filepath.FromSlash(u.Path))
		case "fs":
			src = schema.SourceFromFS(strings.TrimPrefix(u.Path, "/"))
		case "http", "https":
			u.Fragment = ""
			if src, err = schema.SourceFromURL(u.String()); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("jsonschema: unsupported reference %q", raw)
		}
		doc, err := l.Load(ctx, src)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(doc.Raw())), nil
	}
}
