// Package method derives variables from other variables, either by evaluating
// an expression or by calling a native function.
package method

import (
	"github.com/pkg/errors"

	"modbushil/pkg/method/expr"
	"modbushil/pkg/runtime/constant"
	"modbushil/pkg/utils/convutil"
)

type Action string

const (
	ActionEval     Action = "eval"
	ActionFunction Action = "function"
)

// Config is one entry of read_methods or write_methods.
type Config struct {
	Set        string   `json:"set"`
	Action     Action   `json:"action"`
	Expression string   `json:"expression,omitempty"`
	Function   string   `json:"function,omitempty"`
	Parameters []string `json:"parameters,omitempty"`
}

// Func is a native callable for function methods. Arguments arrive in the
// order of the configured parameters.
type Func func(args ...float64) (float64, error)

type FunctionTable map[string]Func

type Method struct {
	output   string
	action   Action
	expr     *expr.Expression
	fn       Func
	fnName   string
	required []string
}

// NewMethod prepares a method once: expressions are compiled and function
// names resolved against functions.
func NewMethod(c Config, functions FunctionTable) (*Method, error) {
	if c.Set == "" {
		return nil, errors.Wrap(constant.ErrConfig, "method has no output variable")
	}
	m := &Method{output: c.Set, action: c.Action}
	switch c.Action {
	case ActionEval:
		e, err := expr.Compile(c.Expression)
		if err != nil {
			return nil, errors.Wrapf(constant.ErrConfig, "method for '%s': %v", c.Set, err)
		}
		m.expr = e
		m.required = e.Variables()
	case ActionFunction:
		fn, ok := functions[c.Function]
		if !ok {
			return nil, errors.Wrapf(constant.ErrConfig, "method for '%s' uses unknown function '%s'", c.Set, c.Function)
		}
		m.fn = fn
		m.fnName = c.Function
		m.required = append([]string(nil), c.Parameters...)
	default:
		return nil, errors.Wrapf(constant.ErrConfig, "Invalid method action: %s", c.Action)
	}
	return m, nil
}

func (m *Method) Output() string {
	return m.output
}

func (m *Method) Action() Action {
	return m.action
}

func (m *Method) RequiredVariables() []string {
	return append([]string(nil), m.required...)
}

// Invoke computes the output from the given buffer.
func (m *Method) Invoke(values map[string]interface{}) (float64, error) {
	args := make([]float64, len(m.required))
	for i, name := range m.required {
		v, ok := values[name]
		if !ok {
			return 0, errors.Wrapf(constant.ErrMissingVariable, "Variable %s not provided for method evaluation", name)
		}
		f, err := convutil.ToFloat64(v)
		if err != nil {
			return 0, errors.Wrapf(err, "method for '%s'", m.output)
		}
		args[i] = f
	}

	if m.action == ActionFunction {
		out, err := m.fn(args...)
		if err != nil {
			return 0, errors.Wrapf(err, "function %s for '%s'", m.fnName, m.output)
		}
		return out, nil
	}

	vars := make(map[string]float64, len(args))
	for i, name := range m.required {
		vars[name] = args[i]
	}
	out, err := m.expr.Evaluate(vars)
	if err != nil {
		return 0, errors.Wrapf(err, "expression %q for '%s'", m.expr.String(), m.output)
	}
	return out, nil
}
