package form

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/schema"
)

// ServerErrorType tags errors applied from a server payload when the caller
// does not choose a type.
const ServerErrorType = "server"

// wrapperSegments are leading segments servers commonly nest request fields
// under.
var wrapperSegments = map[string]struct{}{
	"body":       {},
	"request":    {},
	"payload":    {},
	"data":       {},
	"attributes": {},
}

// ApplyErrorPayload appends server errors to the store. Payload keys may be
// JSON pointers ("/users/0/email"), dotted or bracketed paths, optionally
// nested under wrappers such as "body" or "data". Each key is matched to the
// longest known field path, taken from the current values and the
// validator's field descriptors; keys that match nothing land on the
// form-level key. It returns the applied messages by field path.
func (s *Store) ApplyErrorPayload(payload map[string][]string, errType string) map[string][]string {
	if errType == "" {
		errType = ServerErrorType
	}

	s.mu.RLock()
	values := cloneValues(s.values)
	s.mu.RUnlock()

	mapping := MapErrorPayload(values, KnownPaths(values, s.Fields()), payload)
	if len(mapping) == 0 {
		return mapping
	}

	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s.mu.Lock()
	for _, key := range keys {
		for _, message := range mapping[key] {
			s.errors[key] = append(s.errors[key], FieldError{Type: errType, Message: message})
		}
	}
	n := s.changeLocked(ChangedErrors)
	s.mu.Unlock()
	n.send()
	return mapping
}

// KnownPaths lists the canonical paths of every node in values plus the
// leaf descriptors of fields.
func KnownPaths(values map[string]any, fields []schema.Field) map[string]struct{} {
	known := make(map[string]struct{})
	collectValuePaths(values, nil, known)
	for _, leaf := range schema.Leaves(fields) {
		known[leaf.Name] = struct{}{}
	}
	return known
}

func collectValuePaths(node any, prefix fieldpath.Path, known map[string]struct{}) {
	switch typed := node.(type) {
	case map[string]any:
		for key, child := range typed {
			path := prefix.Append(fieldpath.Key(key))
			known[path.String()] = struct{}{}
			collectValuePaths(child, path, known)
		}
	case []any:
		for i, child := range typed {
			path := prefix.Append(fieldpath.Index(i))
			known[path.String()] = struct{}{}
			collectValuePaths(child, path, known)
		}
	}
}

// MapErrorPayload groups payload messages by the known field path each key
// resolves to. Messages are trimmed and de-duplicated in order; unknown and
// form-level keys collect under FormErrorKey.
func MapErrorPayload(values map[string]any, known map[string]struct{}, payload map[string][]string) map[string][]string {
	out := make(map[string][]string)
	if len(payload) == 0 {
		return out
	}

	rawKeys := make([]string, 0, len(payload))
	for key := range payload {
		rawKeys = append(rawKeys, key)
	}
	sort.Strings(rawKeys)

	for _, raw := range rawKeys {
		messages := normalizeMessages(payload[raw])
		if len(messages) == 0 {
			continue
		}
		key := resolveErrorKey(values, known, raw)
		out[key] = normalizeMessages(append(out[key], messages...))
	}
	return out
}

func resolveErrorKey(values map[string]any, known map[string]struct{}, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if isFormLevelKey(trimmed) {
		return FormErrorKey
	}
	segments := payloadSegments(trimmed)
	if len(segments) == 0 {
		return FormErrorKey
	}

	best, bestLen := FormErrorKey, 0
	for _, variant := range segmentVariants(segments) {
		path, n := longestKnownPrefix(values, known, variant)
		if n > bestLen {
			best, bestLen = path, n
		}
	}
	return best
}

// payloadSegments splits JSON pointers, dotted paths and bracketed paths
// into raw segments.
func payloadSegments(raw string) []string {
	clean := strings.TrimPrefix(raw, "#/")
	clean = strings.TrimPrefix(clean, "$.")
	clean = strings.TrimLeft(clean, "#/.$")
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)
	clean = strings.Trim(clean, "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool { return r == '.' || r == '/' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		out = append(out, part)
	}
	return out
}

func segmentVariants(segments []string) [][]string {
	var variants [][]string
	seen := make(map[string]struct{}, 4)
	add := func(candidate []string) {
		if len(candidate) == 0 {
			return
		}
		key := strings.Join(candidate, "\x00")
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, candidate)
	}

	unwrapped := dropWrappers(segments)
	add(segments)
	add(unwrapped)
	add(dropNumeric(segments))
	add(dropNumeric(unwrapped))
	return variants
}

func dropWrappers(segments []string) []string {
	out := segments
	for len(out) > 0 {
		if _, ok := wrapperSegments[strings.ToLower(out[0])]; !ok {
			break
		}
		out = out[1:]
	}
	return out
}

func dropNumeric(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

// longestKnownPrefix returns the longest prefix of segments that names a
// known path, resolving numeric segments against values so array elements
// come out as "[i]".
func longestKnownPrefix(values map[string]any, known map[string]struct{}, segments []string) (string, int) {
	for end := len(segments); end > 0; end-- {
		candidate := fieldpath.FromTokens(values, segments[:end]).String()
		if _, ok := known[candidate]; ok {
			return candidate, end
		}
	}
	return "", 0
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(key) {
	case "", ".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
