package httpform

import (
	"encoding/json"
	"fmt"
	"html"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// update is one field write decoded from a request.
type update struct {
	Name  string
	Value any
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && (mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"))
}

// knownFields is the set of paths a session accepts writes to. A nil set
// accepts every path.
type knownFields map[string]struct{}

// knownFor collects the paths of the current values and the field
// descriptors. Sessions without descriptors accept any path.
func knownFor(values map[string]any, fields []schema.Field) knownFields {
	if len(fields) == 0 {
		return nil
	}
	return form.KnownPaths(values, fields)
}

// accepts reports whether path is a known path, lies below one (an item of
// an array field) or is an ancestor of one (an object holding fields).
func (k knownFields) accepts(path fieldpath.Path) bool {
	if k == nil {
		return true
	}
	for p := path; !p.IsRoot(); p = p.Parent() {
		if _, ok := k[p.String()]; ok {
			return true
		}
	}
	for name := range k {
		if known, err := fieldpath.Parse(name); err == nil && known.HasPrefix(path) {
			return true
		}
	}
	return false
}

// decodeValues reads a submitted form. JSON bodies are value trees whose
// top-level keys are field names; form-encoded keys are field paths. Keys
// the session does not know are dropped.
func decodeValues(r *http.Request, fields []schema.Field, known knownFields, policy *bluemonday.Policy) ([]update, error) {
	if isJSON(r) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("httpform: decode JSON body: %w", err)
		}
		names := make([]string, 0, len(body))
		for name := range body {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]update, 0, len(names))
		for _, name := range names {
			path := fieldpath.New(fieldpath.Key(name))
			if !known.accepts(path) {
				continue
			}
			out = append(out, update{Name: path.String(), Value: sanitizeTree(body[name], policy)})
		}
		return out, nil
	}

	if err := parseForm(r); err != nil {
		return nil, fmt.Errorf("httpform: parse form: %w", err)
	}
	return formUpdates(r.PostForm, fields, known, policy)
}

func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(32 << 10)
	}
	return r.ParseForm()
}

// formUpdates coerces form-encoded values using the field descriptors.
// Keys that do not parse as field paths, or that the session does not know,
// are ignored; values that do not coerce are kept as text so the validator
// reports them.
func formUpdates(posted url.Values, fields []schema.Field, known knownFields, policy *bluemonday.Policy) ([]update, error) {
	names := make([]string, 0, len(posted))
	for name := range posted {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]update, 0, len(names))
	for _, name := range names {
		path, err := fieldpath.Parse(name)
		if err != nil || path.IsRoot() || !known.accepts(path) {
			continue
		}
		canonical := path.String()
		raw := posted[name]
		for i := range raw {
			raw[i] = sanitize(raw[i], policy)
		}

		field, described := schema.Lookup(fields, canonical)
		switch {
		case described && field.Type == schema.FieldTypeArray:
			out = append(out, update{Name: canonical, Value: coerceList(field, raw)})
		case len(raw) > 1:
			list := make([]any, len(raw))
			for i, item := range raw {
				list[i] = item
			}
			out = append(out, update{Name: canonical, Value: list})
		case described:
			out = append(out, update{Name: canonical, Value: coerce(field, raw[0])})
		default:
			out = append(out, update{Name: canonical, Value: raw[0]})
		}
	}
	return out, nil
}

func coerce(field schema.Field, raw string) any {
	value, err := field.Coerce(raw)
	if err != nil {
		return raw
	}
	return value
}

func coerceList(field schema.Field, raw []string) any {
	if len(raw) == 1 {
		return coerce(field, raw[0])
	}
	out := make([]any, 0, len(raw))
	for _, item := range raw {
		if field.Items != nil {
			out = append(out, coerce(*field.Items, item))
			continue
		}
		out = append(out, item)
	}
	return out
}

// sanitize strips markup and returns plain text.
func sanitize(raw string, policy *bluemonday.Policy) string {
	if policy == nil || !strings.ContainsAny(raw, "<>&") {
		return raw
	}
	return html.UnescapeString(policy.Sanitize(raw))
}

func sanitizeTree(value any, policy *bluemonday.Policy) any {
	switch typed := value.(type) {
	case string:
		return sanitize(typed, policy)
	case map[string]any:
		for k, v := range typed {
			typed[k] = sanitizeTree(v, policy)
		}
		return typed
	case []any:
		for i, v := range typed {
			typed[i] = sanitizeTree(v, policy)
		}
		return typed
	default:
		return value
	}
}

// fieldUpdate is the body of PATCH /field.
type fieldUpdate struct {
	Name     string `json:"name"`
	Value    any    `json:"value"`
	Validate bool   `json:"validate"`
}

func decodeFieldUpdate(r *http.Request, fields []schema.Field, policy *bluemonday.Policy) (fieldUpdate, error) {
	var body fieldUpdate
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return fieldUpdate{}, fmt.Errorf("httpform: decode JSON body: %w", err)
		}
		body.Value = sanitizeTree(body.Value, policy)
	} else {
		if err := parseForm(r); err != nil {
			return fieldUpdate{}, fmt.Errorf("httpform: parse form: %w", err)
		}
		body.Name = r.PostForm.Get("name")
		body.Validate = r.PostForm.Get("validate") == "true"
		raw := sanitize(r.PostForm.Get("value"), policy)
		if field, ok := schema.Lookup(fields, body.Name); ok {
			body.Value = coerce(field, raw)
		} else {
			body.Value = raw
		}
	}
	if strings.TrimSpace(body.Name) == "" {
		return fieldUpdate{}, fmt.Errorf("httpform: field name is required")
	}
	return body, nil
}

// resetRequest is the body of POST /reset.
type resetRequest struct {
	Name       string `json:"name"`
	KeepValues bool   `json:"keepValues"`
	KeepErrors bool   `json:"keepErrors"`
}

func decodeReset(r *http.Request) (resetRequest, error) {
	var body resetRequest
	if isJSON(r) {
		if r.ContentLength == 0 {
			return body, nil
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return resetRequest{}, fmt.Errorf("httpform: decode JSON body: %w", err)
		}
		return body, nil
	}
	if err := parseForm(r); err != nil {
		return resetRequest{}, fmt.Errorf("httpform: parse form: %w", err)
	}
	body.Name = r.Form.Get("name")
	body.KeepValues = r.Form.Get("keepValues") == "true"
	body.KeepErrors = r.Form.Get("keepErrors") == "true"
	return body, nil
}
