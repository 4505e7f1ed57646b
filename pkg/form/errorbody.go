package form

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidErrorBody is returned by ParseErrorBody for payloads that are
// not JSON.
var ErrInvalidErrorBody = errors.New("form: error body is not valid JSON")

var (
	pathKeys    = []string{"source.pointer", "pointer", "path", "field", "loc", "name", "key"}
	messageKeys = []string{"message", "detail", "msg", "title", "error"}
)

// ParseErrorBody extracts a field error payload from a JSON response body,
// ready for ApplyErrorPayload. It understands the common shapes:
//
//	{"errors": {"email": ["taken"], "form": "try again"}}
//	{"errors": [{"source": {"pointer": "/data/attributes/email"}, "detail": "taken"}]}
//	{"errors": [{"loc": ["body", "email"], "msg": "taken"}]}
//	{"detail": [...]} and {"message": "..."}
//
// Messages without a recognisable path are keyed by FormErrorKey.
func ParseErrorBody(raw []byte) (map[string][]string, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidErrorBody
	}
	root := gjson.ParseBytes(raw)
	out := make(map[string][]string)

	for _, key := range []string{"errors", "detail", "fields"} {
		collectErrorNode(root.Get(key), out)
	}
	if len(out) == 0 {
		if msg := firstString(root, messageKeys); msg != "" {
			out[FormErrorKey] = append(out[FormErrorKey], msg)
		}
	}
	return out, nil
}

func collectErrorNode(node gjson.Result, out map[string][]string) {
	switch {
	case !node.Exists():
	case node.Type == gjson.String:
		out[FormErrorKey] = append(out[FormErrorKey], node.String())
	case node.IsArray():
		node.ForEach(func(_, item gjson.Result) bool {
			collectErrorItem(item, out)
			return true
		})
	case node.IsObject():
		node.ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = append(out[key.String()], messagesOf(value)...)
			return true
		})
	}
}

func collectErrorItem(item gjson.Result, out map[string][]string) {
	if !item.IsObject() {
		if msg := item.String(); msg != "" {
			out[FormErrorKey] = append(out[FormErrorKey], msg)
		}
		return
	}
	msg := firstString(item, messageKeys)
	if msg == "" {
		return
	}
	key := FormErrorKey
	for _, candidate := range pathKeys {
		value := item.Get(candidate)
		if !value.Exists() {
			continue
		}
		if value.IsArray() {
			parts := make([]string, 0, len(value.Array()))
			for _, part := range value.Array() {
				parts = append(parts, part.String())
			}
			key = strings.Join(parts, ".")
		} else {
			key = value.String()
		}
		break
	}
	out[key] = append(out[key], msg)
}

func messagesOf(value gjson.Result) []string {
	if value.IsArray() {
		var out []string
		value.ForEach(func(_, item gjson.Result) bool {
			if item.IsObject() {
				if msg := firstString(item, messageKeys); msg != "" {
					out = append(out, msg)
				}
				return true
			}
			out = append(out, item.String())
			return true
		})
		return out
	}
	if value.IsObject() {
		if msg := firstString(value, messageKeys); msg != "" {
			return []string{msg}
		}
		return nil
	}
	return []string{value.String()}
}

func firstString(node gjson.Result, keys []string) string {
	for _, key := range keys {
		if value := node.Get(key); value.Exists() && value.Type == gjson.String {
			return value.String()
		}
	}
	return ""
}
