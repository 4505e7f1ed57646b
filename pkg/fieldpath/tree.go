package fieldpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Get resolves the path against root. The boolean reports whether every
// segment exists; a present nil leaf still reports true.
func (p Path) Get(root any) (any, bool) {
	current := root
	for _, seg := range p {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[seg.String()]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, ok := seg.index()
			if !ok || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Has reports whether the path resolves inside root.
func (p Path) Has(root any) bool {
	_, ok := p.Get(root)
	return ok
}

// Set writes value at the path inside root, creating intermediate containers
// as needed: a slice when the following segment is an index, a map
// otherwise. Scalars found along the way are replaced, and slices grow with
// nil entries up to MaxIndex. Setting the root path is rejected; callers
// replace the whole tree themselves.
func (p Path) Set(root map[string]any, value any) error {
	if root == nil {
		return errors.New("fieldpath: root map is nil")
	}
	if len(p) == 0 {
		return errors.New("fieldpath: cannot set the root path")
	}
	_, err := setIn(root, p, value)
	return err
}

// setIn writes value into container and returns the (possibly regrown)
// container so parents can re-link slices.
func setIn(container any, p Path, value any) (any, error) {
	seg := p[0]
	last := len(p) == 1

	switch node := container.(type) {
	case map[string]any:
		key := seg.String()
		if last {
			node[key] = value
			return node, nil
		}
		child, err := setIn(ensureContainer(node[key], p[1]), p[1:], value)
		if err != nil {
			return nil, err
		}
		node[key] = child
		return node, nil

	case []any:
		idx, ok := seg.index()
		if !ok {
			// A non-numeric key cannot address a slice; replace it with a map
			// holding the existing elements by position.
			return setIn(sliceToMap(node), p, value)
		}
		if idx > MaxIndex {
			return nil, fmt.Errorf("%w: index %d exceeds %d", ErrInvalidPath, idx, MaxIndex)
		}
		if len(node) <= idx {
			node = append(node, make([]any, idx+1-len(node))...)
		}
		if last {
			node[idx] = value
			return node, nil
		}
		child, err := setIn(ensureContainer(node[idx], p[1]), p[1:], value)
		if err != nil {
			return nil, err
		}
		node[idx] = child
		return node, nil

	default:
		return setIn(ensureContainer(nil, seg), p, value)
	}
}

func ensureContainer(existing any, next Segment) any {
	switch existing.(type) {
	case map[string]any, []any:
		return existing
	}
	if next.Kind == IndexSegment {
		return []any{}
	}
	return map[string]any{}
}

func sliceToMap(items []any) map[string]any {
	out := make(map[string]any, len(items))
	for i, item := range items {
		out[strconv.Itoa(i)] = item
	}
	return out
}

func (s Segment) index() (int, bool) {
	if s.Kind == IndexSegment {
		return s.Index, s.Index >= 0
	}
	idx, err := strconv.Atoi(s.Key)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// FromPointer converts a JSON pointer (RFC 6901) into a Path. The instance
// is walked alongside the pointer so numeric tokens that address slices
// become index segments while numeric object keys stay keys.
func FromPointer(instance any, pointer string) Path {
	return FromTokens(instance, PointerTokens(pointer))
}

// FromTokens converts already split pointer tokens into a Path using the
// same instance-aware rules as FromPointer.
func FromTokens(instance any, tokens []string) Path {
	out := make(Path, 0, len(tokens))
	current := instance
	for _, token := range tokens {
		switch node := current.(type) {
		case []any:
			if idx, err := strconv.Atoi(token); err == nil && idx >= 0 {
				out = append(out, Index(idx))
				if idx < len(node) {
					current = node[idx]
				} else {
					current = nil
				}
				continue
			}
			out = append(out, Key(token))
			current = nil
		case map[string]any:
			out = append(out, Key(token))
			current = node[token]
		default:
			out = append(out, Key(token))
			current = nil
		}
	}
	return out
}

// PointerTokens splits a JSON pointer into unescaped reference tokens. A
// leading "#" fragment marker is tolerated.
func PointerTokens(pointer string) []string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(pointer), "#")
	if trimmed == "" || trimmed == "/" {
		return nil
	}
	trimmed = strings.TrimPrefix(trimmed, "/")
	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		out = append(out, part)
	}
	return out
}
