// Package openapi validates form values against the JSON request body schema
// of an OpenAPI 3 operation, using github.com/getkin/kin-openapi.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// ErrOperationNotFound is returned when the document has no operation with
// the requested ID.
var ErrOperationNotFound = errors.New("openapi: operation not found")

// ErrNoRequestBody is returned when the operation declares no usable
// request body schema.
var ErrNoRequestBody = errors.New("openapi: operation has no request body schema")

// EmailPattern backs the "email" string format registered by this package.
const EmailPattern = `^[^@\s]+@[^@\s]+\.[^@\s]+$`

var registerFormats sync.Once

func ensureFormats() {
	registerFormats.Do(func() {
		openapi3.DefineStringFormatValidator("email", openapi3.NewRegexpFormatValidator(EmailPattern))
	})
}

// requestMediaTypes are tried in order when picking the body schema.
var requestMediaTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}

// Validator implements schema.Validator and schema.Describer for one
// operation's request body.
type Validator struct {
	operationID string
	method      string
	path        string
	body        *openapi3.Schema
}

var (
	_ schema.Validator = (*Validator)(nil)
	_ schema.Describer = (*Validator)(nil)
)

// FromDocument parses doc and returns a Validator for operationID. External
// references are resolved through l when it is not nil.
func FromDocument(ctx context.Context, doc schema.Document, operationID string, l schema.Loader) (*Validator, error) {
	ensureFormats()
	raw := doc.Raw()
	if len(raw) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	if l != nil {
		loader.IsExternalRefsAllowed = true
		loader.ReadFromURIFunc = readFrom(ctx, l, doc.Source())
	}

	var spec *openapi3.T
	var err error
	if location := documentURL(doc.Source()); location != nil {
		spec, err = loader.LoadFromDataWithPath(raw, location)
	} else {
		spec, err = loader.LoadFromData(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	return fromSpec(spec, operationID)
}

// Load reads src through l and returns a Validator for operationID.
func Load(ctx context.Context, l schema.Loader, src schema.Source, operationID string) (*Validator, error) {
	if l == nil {
		return nil, errors.New("openapi: loader is required")
	}
	doc, err := l.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("openapi: load %s: %w", src.Location(), err)
	}
	return FromDocument(ctx, doc, operationID, l)
}

// Operations lists the operation IDs of a document in sorted order.
func Operations(ctx context.Context, raw []byte) ([]string, error) {
	spec, err := (&openapi3.Loader{Context: ctx}).LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	var ids []string
	if spec.Paths != nil {
		for _, item := range spec.Paths.Map() {
			if item == nil {
				continue
			}
			for _, op := range item.Operations() {
				if op != nil && op.OperationID != "" {
					ids = append(ids, op.OperationID)
				}
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func fromSpec(spec *openapi3.T, operationID string) (*Validator, error) {
	if spec.Paths == nil {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}
	for path, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil || op.OperationID != operationID {
				continue
			}
			body := requestSchema(op.RequestBody)
			if body == nil {
				return nil, fmt.Errorf("%w: %s", ErrNoRequestBody, operationID)
			}
			return &Validator{operationID: operationID, method: method, path: path, body: body}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
}

func requestSchema(ref *openapi3.RequestBodyRef) *openapi3.Schema {
	if ref == nil || ref.Value == nil {
		return nil
	}
	content := ref.Value.Content
	for _, mediaType := range requestMediaTypes {
		if mt, ok := content[mediaType]; ok && mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

// OperationID returns the operation this validator enforces.
func (v *Validator) OperationID() string { return v.operationID }

// Endpoint returns the HTTP method and path of the operation.
func (v *Validator) Endpoint() (method, path string) { return v.method, v.path }

// Parse implements schema.Validator. The output is the input unchanged.
func (v *Validator) Parse(ctx context.Context, input any) (schema.Result, error) {
	if err := ctx.Err(); err != nil {
		return schema.Result{}, err
	}
	instance, err := normalize(input)
	if err != nil {
		return schema.Result{}, fmt.Errorf("openapi: normalize input: %w", err)
	}

	err = v.body.VisitJSON(instance, openapi3.MultiErrors(), openapi3.VisitAsRequest())
	if err == nil {
		return schema.NewResult(input, nil), nil
	}

	var issues []schema.Issue
	collectIssues(err, instance, input, &issues)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Field() < issues[j].Field() })
	return schema.NewResult(input, issues), nil
}

func normalize(input any) (any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectIssues(err error, instance, input any, out *[]schema.Issue) {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		for _, item := range multi {
			collectIssues(item, instance, input, out)
		}
		return
	}

	var serr *openapi3.SchemaError
	if !errors.As(err, &serr) {
		*out = append(*out, schema.Issue{Type: "schema", Message: err.Error(), Path: fieldpath.Path{}})
		return
	}

	path := fieldpath.FromTokens(instance, serr.JSONPointer())
	issue := schema.Issue{
		Type:    issueType(serr),
		Message: serr.Reason,
		Path:    path,
	}
	if issue.Message == "" {
		issue.Message = serr.Error()
	}
	if serr.SchemaField != "required" {
		if value, ok := path.Get(input); ok {
			issue.Input = value
		}
	}
	*out = append(*out, issue)
}

func issueType(serr *openapi3.SchemaError) string {
	if serr.SchemaField == "format" && serr.Schema != nil && serr.Schema.Format != "" {
		return serr.Schema.Format
	}
	return schema.KeywordIssueType(serr.SchemaField)
}

func documentURL(src schema.Source) *url.URL {
	if src == nil {
		return nil
	}
	switch src.Kind() {
	case schema.SourceKindURL:
		u, err := url.Parse(src.Location())
		if err != nil {
			return nil
		}
		return u
	case schema.SourceKindFile:
		abs, err := filepath.Abs(src.Location())
		if err != nil {
			abs = src.Location()
		}
		return &url.URL{Path: filepath.ToSlash(abs)}
	default:
		return &url.URL{Path: src.Location()}
	}
}

func readFrom(ctx context.Context, l schema.Loader, base schema.Source) openapi3.ReadFromURIFunc {
	return func(_ *openapi3.Loader, location *url.URL) ([]byte, error) {
		var (
			src schema.Source
			err error
		)
		switch {
		case location.Scheme == "http" || location.Scheme == "https":
			clean := *location
			clean.Fragment = ""
			src, err = schema.SourceFromURL(clean.String())
		case base != nil && base.Kind() == schema.SourceKindFS:
			src = schema.SourceFromFS(strings.TrimPrefix(location.Path, "/"))
		default:
			src = schema.SourceFromFile(filepath.FromSlash(location.Path))
		}
		if err != nil {
			return nil, err
		}
		doc, err := l.Load(ctx, src)
		if err != nil {
			return nil, err
		}
		return doc.Raw(), nil
	}
}
