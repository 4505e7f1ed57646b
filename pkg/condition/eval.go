package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
)

type node interface {
	eval(values map[string]any) bool
	walk(fn func(fieldpath.Path))
}

type orNode struct{ left, right node }

func (n orNode) eval(values map[string]any) bool {
	return n.left.eval(values) || n.right.eval(values)
}

func (n orNode) walk(fn func(fieldpath.Path)) {
	n.left.walk(fn)
	n.right.walk(fn)
}

type andNode struct{ left, right node }

func (n andNode) eval(values map[string]any) bool {
	return n.left.eval(values) && n.right.eval(values)
}

func (n andNode) walk(fn func(fieldpath.Path)) {
	n.left.walk(fn)
	n.right.walk(fn)
}

type notNode struct{ inner node }

func (n notNode) eval(values map[string]any) bool { return !n.inner.eval(values) }

func (n notNode) walk(fn func(fieldpath.Path)) { n.inner.walk(fn) }

type truthyNode struct{ path fieldpath.Path }

func (n truthyNode) eval(values map[string]any) bool {
	got, ok := n.path.Get(values)
	return ok && truthy(got)
}

func (n truthyNode) walk(fn func(fieldpath.Path)) { fn(n.path) }

// value is a literal on the right of a comparison.
type value struct {
	kind kind
	str  string
	num  float64
	b    bool
}

type compareNode struct {
	path fieldpath.Path
	op   kind
	want value
}

func (n compareNode) walk(fn func(fieldpath.Path)) { fn(n.path) }

func (n compareNode) eval(values map[string]any) bool {
	got, ok := n.path.Get(values)
	if !ok {
		got = nil
	}

	switch n.want.kind {
	case kindNull:
		return (got == nil) == (n.op == kindEq)
	case kindBool:
		return (asBool(got) == n.want.b) == (n.op == kindEq)
	case kindNumber:
		num, ok := asNumber(got)
		if !ok {
			// A missing or non-numeric value only satisfies !=.
			return n.op == kindNeq
		}
		switch n.op {
		case kindEq:
			return num == n.want.num
		case kindNeq:
			return num != n.want.num
		case kindLt:
			return num < n.want.num
		case kindLte:
			return num <= n.want.num
		case kindGt:
			return num > n.want.num
		case kindGte:
			return num >= n.want.num
		}
		return false
	default:
		return (asString(got) == n.want.str) == (n.op == kindEq)
	}
}

func truthy(v any) bool {
	switch typed := v.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return strings.TrimSpace(typed) != ""
	case []any:
		return len(typed) > 0
	case map[string]any:
		return len(typed) > 0
	}
	if n, ok := asNumber(v); ok {
		return n != 0
	}
	return true
}

func asBool(v any) bool {
	if s, ok := v.(string); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed
		}
	}
	return truthy(v)
}

func asNumber(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}
