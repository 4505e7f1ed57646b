// Package condition evaluates the small boolean expressions used to show or
// hide fields depending on the values of other fields:
//
//	newsletter
//	role == "admin" && !guest
//	age >= 18 || parent.consent == true
//	address.country != null
//
// Identifiers are field paths read from the current value tree. A bare
// identifier is true when its value is set and not empty, zero or false.
package condition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
)

// ErrSyntax wraps every compile error.
var ErrSyntax = errors.New("condition: syntax error")

// Condition is a compiled expression. The zero value and nil both always
// hold.
type Condition struct {
	source string
	root   node
}

// Compile parses rule. An empty rule compiles to a condition that always
// holds.
func Compile(rule string) (*Condition, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return &Condition{}, nil
	}
	tokens, err := scan(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, rule, err)
	}
	p := &parser{tokens: tokens}
	root, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, rule, err)
	}
	return &Condition{source: trimmed, root: root}, nil
}

// MustCompile is Compile for rules known to be valid.
func MustCompile(rule string) *Condition {
	c, err := Compile(rule)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the rule text.
func (c *Condition) String() string {
	if c == nil {
		return ""
	}
	return c.source
}

// Eval reports whether the condition holds for values.
func (c *Condition) Eval(values map[string]any) bool {
	if c == nil || c.root == nil {
		return true
	}
	return c.root.eval(values)
}

// Paths lists the field paths the condition reads, in order of appearance.
func (c *Condition) Paths() []string {
	if c == nil || c.root == nil {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	c.root.walk(func(p fieldpath.Path) {
		name := p.String()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	})
	return out
}
