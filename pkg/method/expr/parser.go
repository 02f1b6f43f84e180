package expr

import (
	"github.com/pkg/errors"
)

type parser struct {
	tokens []token
	pos    int
	vars   []string
	seen   map[string]bool
}

func parse(src string) (node, []string, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{tokens: tokens, seen: map[string]bool{}}
	n, err := p.parseConditional()
	if err != nil {
		return nil, nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, nil, errors.Wrapf(ErrSyntax, "unexpected %q at offset %d", t.text, t.pos)
	}
	return n, p.vars, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOperator(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOperator {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == kw
}

func (p *parser) expect(kind tokenKind, text string) error {
	t := p.next()
	if t.kind != kind || t.text != text {
		if t.kind == tokEOF {
			return errors.Wrapf(ErrSyntax, "expected %q at end of expression", text)
		}
		return errors.Wrapf(ErrSyntax, "expected %q at offset %d, got %q", text, t.pos, t.text)
	}
	return nil
}

// parseConditional handles both `a if c else b` and `c ? a : b`.
func (p *parser) parseConditional() (node, error) {
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	switch {
	case p.isOperator("?"):
		p.next()
		then, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokOperator, ":"); err != nil {
			return nil, err
		}
		otherwise, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		return &conditionalNode{cond: n, then: then, otherwise: otherwise}, nil
	case p.isKeyword("if"):
		p.next()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokIdent, "else"); err != nil {
			return nil, err
		}
		otherwise, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		return &conditionalNode{cond: cond, then: n, otherwise: otherwise}, nil
	}
	return n, nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isOperator("||") || p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{or: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isOperator("&&") || p.isKeyword("and") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.isOperator("!") || p.isKeyword("not") {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{x: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	first, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if !p.isOperator(comparisons...) {
		return first, nil
	}
	c := &comparisonNode{operands: []node{first}}
	for p.isOperator(comparisons...) {
		c.ops = append(c.ops, p.next().text)
		operand, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		c.operands = append(c.operands, operand)
	}
	return c, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOperator("+", "-") {
		op := p.next().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOperator("*", "/", "%", "//") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	switch {
	case p.isOperator("-"):
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negateNode{x: x}, nil
	case p.isOperator("+"):
		p.next()
		return p.parseUnary()
	}
	return p.parsePower()
}

// parsePower binds tighter than unary minus on its left, so -2**2 is -4.
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.isOperator("**") {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: "**", left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &numberNode{value: t.num}, nil
	case tokVariable:
		if !p.seen[t.text] {
			p.seen[t.text] = true
			p.vars = append(p.vars, t.text)
		}
		return &variableNode{name: t.text}, nil
	case tokLParen:
		n, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return n, nil
	case tokIdent:
		switch t.text {
		case "True", "true":
			return &numberNode{value: 1}, nil
		case "False", "false":
			return &numberNode{value: 0}, nil
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return nil, errors.Wrapf(ErrSyntax, "unexpected identifier %q at offset %d", t.text, t.pos)
	case tokEOF:
		return nil, errors.Wrap(ErrSyntax, "unexpected end of expression")
	}
	return nil, errors.Wrapf(ErrSyntax, "unexpected %q at offset %d", t.text, t.pos)
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := functions[name.text]
	if !ok {
		return nil, errors.Wrapf(ErrSyntax, "unknown function %q at offset %d", name.text, name.pos)
	}
	p.next() // (
	call := &callNode{name: name.text, fn: fn}
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseConditional()
			if err != nil {
				return nil, err
			}
			call.args = append(call.args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if len(call.args) < fn.minArgs || (fn.maxArgs >= 0 && len(call.args) > fn.maxArgs) {
		return nil, errors.Wrapf(ErrSyntax, "function %s called with %d arguments", name.text, len(call.args))
	}
	return call, nil
}
