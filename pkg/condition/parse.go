package condition

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
)

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) parse() (node, error) {
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		return nil, fmt.Errorf("unexpected %q at %d", tok.text, tok.pos)
	}
	return n, nil
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept(kindOr) {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.accept(kindAnd) {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.accept(kindNot) {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	if p.accept(kindLParen) {
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if !p.accept(kindRParen) {
			return nil, errors.New("missing closing ')'")
		}
		return inner, nil
	}

	tok, ok := p.next()
	if !ok {
		return nil, errors.New("unexpected end of expression")
	}
	if tok.kind != kindIdent {
		return nil, fmt.Errorf("expected a field path, got %q at %d", tok.text, tok.pos)
	}
	path, err := fieldpath.Parse(tok.text)
	if err != nil || path.IsRoot() {
		return nil, fmt.Errorf("invalid field path %q at %d", tok.text, tok.pos)
	}

	op, ok := p.peek()
	if !ok || !isComparison(op.kind) {
		return truthyNode{path}, nil
	}
	p.pos++
	lit, err := p.literal()
	if err != nil {
		return nil, err
	}
	if lit.kind == kindNull && op.kind != kindEq && op.kind != kindNeq {
		return nil, fmt.Errorf("%q cannot compare with null", op.text)
	}
	if lit.kind != kindNumber && isOrdering(op.kind) {
		return nil, fmt.Errorf("%q needs a number", op.text)
	}
	return compareNode{path: path, op: op.kind, want: lit}, nil
}

func (p *parser) literal() (value, error) {
	tok, ok := p.next()
	if !ok {
		return value{}, errors.New("missing value after operator")
	}
	switch tok.kind {
	case kindString, kindIdent:
		// Bare words compare as strings: role == admin.
		return value{kind: kindString, str: tok.text}, nil
	case kindNumber:
		n, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return value{}, fmt.Errorf("invalid number %q", tok.text)
		}
		return value{kind: kindNumber, num: n}, nil
	case kindBool:
		return value{kind: kindBool, b: tok.text == "true"}, nil
	case kindNull:
		return value{kind: kindNull}, nil
	default:
		return value{}, fmt.Errorf("expected a value, got %q at %d", tok.text, tok.pos)
	}
}

func (p *parser) next() (token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) accept(k kind) bool {
	if tok, ok := p.peek(); ok && tok.kind == k {
		p.pos++
		return true
	}
	return false
}

func isComparison(k kind) bool {
	return k == kindEq || k == kindNeq || isOrdering(k)
}

func isOrdering(k kind) bool {
	return k == kindLt || k == kindLte || k == kindGt || k == kindGte
}
