package condition

import (
	"fmt"
	"strconv"
	"strings"
)

type kind int

const (
	kindIdent kind = iota
	kindString
	kindNumber
	kindBool
	kindNull
	kindEq
	kindNeq
	kindLt
	kindLte
	kindGt
	kindGte
	kindAnd
	kindOr
	kindNot
	kindLParen
	kindRParen
)

type token struct {
	kind kind
	text string
	pos  int
}

// operators is ordered so that two-character operators win.
var operators = []struct {
	text string
	kind kind
}{
	{"==", kindEq},
	{"!=", kindNeq},
	{"<=", kindLte},
	{">=", kindGte},
	{"&&", kindAnd},
	{"||", kindOr},
	{"<", kindLt},
	{">", kindGt},
	{"!", kindNot},
	{"(", kindLParen},
	{")", kindRParen},
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isBoundary(ch byte) bool {
	return isSpace(ch) || strings.IndexByte("()!=&|<>\"'", ch) >= 0
}

func scan(input string) ([]token, error) {
	var out []token
	for i := 0; i < len(input); {
		ch := input[i]
		if isSpace(ch) {
			i++
			continue
		}

		if ch == '"' || ch == '\'' {
			end := i + 1
			for end < len(input) && input[end] != ch {
				if input[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(input) {
				return nil, fmt.Errorf("unterminated string at %d", i)
			}
			raw := input[i : end+1]
			if ch == '\'' {
				body := strings.ReplaceAll(raw[1:len(raw)-1], `\'`, `'`)
				raw = `"` + strings.ReplaceAll(body, `"`, `\"`) + `"`
			}
			text, err := strconv.Unquote(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid string at %d", i)
			}
			out = append(out, token{kind: kindString, text: text, pos: i})
			i = end + 1
			continue
		}

		matched := false
		for _, op := range operators {
			if strings.HasPrefix(input[i:], op.text) {
				out = append(out, token{kind: op.kind, text: op.text, pos: i})
				i += len(op.text)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		switch ch {
		case '=', '&', '|':
			return nil, fmt.Errorf("unexpected %q at %d", ch, i)
		}

		start := i
		for i < len(input) && !isBoundary(input[i]) {
			i++
		}
		word := input[start:i]
		out = append(out, classify(word, start))
	}
	return out, nil
}

func classify(word string, pos int) token {
	switch strings.ToLower(word) {
	case "true", "false":
		return token{kind: kindBool, text: strings.ToLower(word), pos: pos}
	case "null", "nil":
		return token{kind: kindNull, text: "null", pos: pos}
	}
	if looksNumeric(word) {
		return token{kind: kindNumber, text: word, pos: pos}
	}
	return token{kind: kindIdent, text: word, pos: pos}
}

func looksNumeric(word string) bool {
	if word == "" || strings.IndexByte("0123456789+-.", word[0]) < 0 {
		return false
	}
	_, err := strconv.ParseFloat(word, 64)
	return err == nil
}
