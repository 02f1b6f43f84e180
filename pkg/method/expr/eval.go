package expr

import (
	"math"

	"github.com/pkg/errors"
)

type node interface {
	eval(vars map[string]float64) (float64, error)
}

var comparisons = []string{"==", "!=", "<", "<=", ">", ">="}

func truth(v float64) bool {
	return v != 0
}

func fromBool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type numberNode struct {
	value float64
}

func (n *numberNode) eval(map[string]float64) (float64, error) {
	return n.value, nil
}

type variableNode struct {
	name string
}

func (n *variableNode) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[n.name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownVariable, "%s", n.name)
	}
	return v, nil
}

type negateNode struct {
	x node
}

func (n *negateNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.x.eval(vars)
	return -v, err
}

type notNode struct {
	x node
}

func (n *notNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.x.eval(vars)
	if err != nil {
		return 0, err
	}
	return fromBool(!truth(v)), nil
}

type logicalNode struct {
	or          bool
	left, right node
}

func (n *logicalNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	if truth(l) == n.or {
		return l, nil
	}
	return n.right.eval(vars)
}

type conditionalNode struct {
	cond, then, otherwise node
}

func (n *conditionalNode) eval(vars map[string]float64) (float64, error) {
	c, err := n.cond.eval(vars)
	if err != nil {
		return 0, err
	}
	if truth(c) {
		return n.then.eval(vars)
	}
	return n.otherwise.eval(vars)
}

// comparisonNode chains like a < b < c, meaning a < b and b < c.
type comparisonNode struct {
	ops      []string
	operands []node
}

func (n *comparisonNode) eval(vars map[string]float64) (float64, error) {
	left, err := n.operands[0].eval(vars)
	if err != nil {
		return 0, err
	}
	for i, op := range n.ops {
		right, err := n.operands[i+1].eval(vars)
		if err != nil {
			return 0, err
		}
		var ok bool
		switch op {
		case "==":
			ok = left == right
		case "!=":
			ok = left != right
		case "<":
			ok = left < right
		case "<=":
			ok = left <= right
		case ">":
			ok = left > right
		case ">=":
			ok = left >= right
		}
		if !ok {
			return 0, nil
		}
		left = right
	}
	return 1, nil
}

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	case "//":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return math.Floor(l / r), nil
	case "%":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		m := math.Mod(l, r)
		// result takes the sign of the divisor
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m, nil
	case "**":
		if l == 0 && r < 0 {
			return 0, ErrDivisionByZero
		}
		v := math.Pow(l, r)
		if math.IsNaN(v) {
			return 0, errors.Wrapf(ErrDomain, "%v ** %v", l, r)
		}
		return v, nil
	}
	return 0, errors.Wrapf(ErrSyntax, "unknown operator %q", n.op)
}

type function struct {
	minArgs int
	// maxArgs < 0 means variadic
	maxArgs int
	call    func(args []float64) (float64, error)
}

var functions = map[string]function{
	"abs": {1, 1, func(a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"max": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
	"min": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"round": {1, 2, func(a []float64) (float64, error) {
		if len(a) == 1 {
			return math.RoundToEven(a[0]), nil
		}
		p := math.Pow(10, math.Trunc(a[1]))
		return math.RoundToEven(a[0]*p) / p, nil
	}},
	"int":   {1, 1, func(a []float64) (float64, error) { return math.Trunc(a[0]), nil }},
	"float": {1, 1, func(a []float64) (float64, error) { return a[0], nil }},
	"sqrt": {1, 1, func(a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, errors.Wrapf(ErrDomain, "sqrt(%v)", a[0])
		}
		return math.Sqrt(a[0]), nil
	}},
	"pow": {2, 2, func(a []float64) (float64, error) {
		return (&binaryNode{op: "**", left: &numberNode{a[0]}, right: &numberNode{a[1]}}).eval(nil)
	}},
}

type callNode struct {
	name string
	fn   function
	args []node
}

func (n *callNode) eval(vars map[string]float64) (float64, error) {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(vars)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	v, err := n.fn.call(args)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", n.name)
	}
	return v, nil
}
