// Package fieldpath parses and formats the string paths that address form
// fields (for example "users[0].email") and resolves them against value trees
// made of map[string]any and []any nodes.
package fieldpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath reports a malformed field path.
var ErrInvalidPath = errors.New("fieldpath: invalid path")

// MaxIndex is the largest array index a path may name. Field names arrive
// from clients, and Set grows slices up to the index it writes.
const MaxIndex = 1000

// SegmentKind distinguishes object keys from array indexes.
type SegmentKind int

const (
	KeySegment SegmentKind = iota
	IndexSegment
)

// Segment is one step of a Path.
type Segment struct {
	Kind  SegmentKind
	Key   string
	Index int
}

// Key returns an object key segment.
func Key(name string) Segment {
	return Segment{Kind: KeySegment, Key: name}
}

// Index returns an array index segment.
func Index(idx int) Segment {
	return Segment{Kind: IndexSegment, Index: idx}
}

func (s Segment) String() string {
	if s.Kind == IndexSegment {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path is an ordered list of segments rooted at the form values. The empty
// path addresses the form as a whole.
type Path []Segment

// New builds a Path from segments.
func New(segments ...Segment) Path {
	return append(Path(nil), segments...)
}

// Parse converts a field name such as "users[0].email" into a Path. Bracketed
// numbers become index segments; bracketed text becomes a key segment, and a
// quoted bracket (`meta["a.b"]`) keeps separators inside the key.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, nil
	}

	var (
		out     Path
		current strings.Builder
		pending bool
	)

	flush := func(pos int) error {
		if current.Len() == 0 {
			return fmt.Errorf("%w: empty segment at offset %d in %q", ErrInvalidPath, pos, raw)
		}
		out = append(out, Key(current.String()))
		current.Reset()
		return nil
	}

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch ch {
		case '.':
			if pending {
				pending = false
				if current.Len() == 0 {
					// "a[0].b": the dot follows a bracket, nothing to flush.
					if i+1 >= len(raw) {
						return nil, fmt.Errorf("%w: trailing separator in %q", ErrInvalidPath, raw)
					}
					continue
				}
			}
			if err := flush(i); err != nil {
				return nil, err
			}
			if i+1 >= len(raw) {
				return nil, fmt.Errorf("%w: trailing separator in %q", ErrInvalidPath, raw)
			}
		case '[':
			if current.Len() > 0 {
				if err := flush(i); err != nil {
					return nil, err
				}
			} else if i > 0 && !pending {
				return nil, fmt.Errorf("%w: empty segment at offset %d in %q", ErrInvalidPath, i, raw)
			}
			seg, end, err := parseBracket(raw, i)
			if err != nil {
				return nil, err
			}
			out = append(out, seg)
			i += end
			pending = true
		case ']':
			return nil, fmt.Errorf("%w: unexpected ']' at offset %d in %q", ErrInvalidPath, i, raw)
		default:
			if pending {
				return nil, fmt.Errorf("%w: missing separator after ']' at offset %d in %q", ErrInvalidPath, i, raw)
			}
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		out = append(out, Key(current.String()))
	}
	return out, nil
}

// parseBracket reads the bracket segment opening at raw[start]. It returns
// the segment and the offset of the closing ']' from start.
func parseBracket(raw string, start int) (Segment, int, error) {
	rest := raw[start+1:]
	if len(rest) > 0 && (rest[0] == '"' || rest[0] == '\'') {
		closing := strings.IndexByte(rest[1:], rest[0])
		if closing < 0 || len(rest) < closing+3 || rest[closing+2] != ']' {
			return Segment{}, 0, fmt.Errorf("%w: unterminated quoted key at offset %d in %q", ErrInvalidPath, start, raw)
		}
		key := rest[1 : closing+1]
		if key == "" {
			return Segment{}, 0, fmt.Errorf("%w: empty brackets at offset %d in %q", ErrInvalidPath, start, raw)
		}
		return Key(key), closing + 3, nil
	}

	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return Segment{}, 0, fmt.Errorf("%w: unterminated bracket at offset %d in %q", ErrInvalidPath, start, raw)
	}
	inner := strings.TrimSpace(rest[:end])
	switch {
	case inner == "":
		return Segment{}, 0, fmt.Errorf("%w: empty brackets at offset %d in %q", ErrInvalidPath, start, raw)
	case isDigits(inner):
		idx, err := strconv.Atoi(inner)
		if err != nil || idx > MaxIndex {
			return Segment{}, 0, fmt.Errorf("%w: index %s out of range in %q", ErrInvalidPath, inner, raw)
		}
		return Index(idx), end + 1, nil
	case inner[0] == '-' && isDigits(inner[1:]):
		return Segment{}, 0, fmt.Errorf("%w: negative index %s in %q", ErrInvalidPath, inner, raw)
	}
	return Key(inner), end + 1, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParse panics when raw is not a valid path. Useful for tests and
// package-level variables.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Canonical parses raw and returns its canonical string form. Paths that do
// not parse are returned unchanged so callers can still key on them.
func Canonical(raw string) string {
	p, err := Parse(raw)
	if err != nil {
		return raw
	}
	return p.String()
}

// String renders the canonical form: the first key has no leading
// separator, keys are joined with "." and indexes are written as "[i]".
// Keys holding '.', '[' or ']' are written quoted (`meta["a.b"]`) so the
// result parses back to the same path.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		switch {
		case seg.Kind == IndexSegment:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		case strings.ContainsAny(seg.Key, ".[]"):
			quote := byte('"')
			if strings.Contains(seg.Key, `"`) {
				quote = '\''
			}
			b.WriteByte('[')
			b.WriteByte(quote)
			b.WriteString(seg.Key)
			b.WriteByte(quote)
			b.WriteByte(']')
		case i == 0:
			b.WriteString(seg.Key)
		default:
			b.WriteByte('.')
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}

// Append returns a new Path with the given segments added.
func (p Path) Append(segments ...Segment) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// IsRoot reports whether the path addresses the whole form.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}
