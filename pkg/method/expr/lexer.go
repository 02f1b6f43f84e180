package expr

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokVariable
	tokIdent
	tokOperator
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// longest operators first
var operators = []string{
	"**", "//", "==", "!=", "<=", ">=", "&&", "||",
	"+", "-", "*", "/", "%", "<", ">", "!", "?", ":",
}

func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case c == '$':
			if !strings.HasPrefix(src[i:], "$(") {
				return nil, errors.Wrapf(ErrSyntax, "expected '$(' at offset %d", i)
			}
			end := strings.IndexByte(src[i+2:], ')')
			if end < 0 {
				return nil, errors.Wrapf(ErrSyntax, "unterminated placeholder at offset %d", i)
			}
			name := src[i+2 : i+2+end]
			if len(name) == 0 {
				return nil, errors.Wrapf(ErrSyntax, "empty placeholder at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokVariable, text: name, pos: i})
			i += end + 3
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i = scanNumber(src, i)
			v, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, errors.Wrapf(ErrSyntax, "invalid number %q at offset %d", src[start:i], start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: src[start:i], num: v, pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			op := matchOperator(src[i:])
			if op == "" {
				return nil, errors.Wrapf(ErrSyntax, "unexpected character %q at offset %d", c, i)
			}
			tokens = append(tokens, token{kind: tokOperator, text: op, pos: i})
			i += len(op)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

func scanNumber(src string, i int) int {
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			i = j
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
	}
	return i
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
