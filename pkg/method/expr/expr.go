// Package expr compiles the arithmetic expressions used by eval methods.
//
// Variables are written as $(name). Values are float64; comparisons and
// logical operators yield 1 or 0, and `or`/`and` return one of their operands.
package expr

import (
	"errors"
)

var (
	ErrSyntax          = errors.New("syntax error")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrDomain          = errors.New("math domain error")
)

// Expression is a compiled expression, safe for concurrent evaluation.
type Expression struct {
	source string
	root   node
	vars   []string
}

// Compile parses src once. It rejects anything outside the grammar.
func Compile(src string) (*Expression, error) {
	root, vars, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Expression{source: src, root: root, vars: vars}, nil
}

// MustCompile panics when src does not compile.
func MustCompile(src string) *Expression {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Evaluate computes the expression. Every referenced variable must be in vars.
func (e *Expression) Evaluate(vars map[string]float64) (float64, error) {
	return e.root.eval(vars)
}

// Variables lists the referenced variable names in order of first appearance.
func (e *Expression) Variables() []string {
	out := make([]string, len(e.vars))
	copy(out, e.vars)
	return out
}

func (e *Expression) String() string {
	return e.source
}
