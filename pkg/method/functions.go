package method

import (
	"errors"
	"math"
)

var errDivisionByZero = errors.New("division by zero")

// DefaultFunctions returns a fresh table of the built-in native functions.
func DefaultFunctions() FunctionTable {
	return FunctionTable{
		"add": func(args ...float64) (float64, error) {
			var sum float64
			for _, a := range args {
				sum += a
			}
			return sum, nil
		},
		"sub": fixed(2, func(a []float64) (float64, error) { return a[0] - a[1], nil }),
		"mul": func(args ...float64) (float64, error) {
			p := 1.0
			for _, a := range args {
				p *= a
			}
			return p, nil
		},
		"div": fixed(2, func(a []float64) (float64, error) {
			if a[1] == 0 {
				return 0, errDivisionByZero
			}
			return a[0] / a[1], nil
		}),
		// clamp(x, lo, hi)
		"clamp": fixed(3, func(a []float64) (float64, error) {
			return math.Max(a[1], math.Min(a[2], a[0])), nil
		}),
		"sign": fixed(1, func(a []float64) (float64, error) {
			switch {
			case a[0] > 0:
				return 1, nil
			case a[0] < 0:
				return -1, nil
			}
			return 0, nil
		}),
	}
}

func fixed(n int, fn func([]float64) (float64, error)) Func {
	return func(args ...float64) (float64, error) {
		if len(args) != n {
			return 0, errors.New("wrong number of arguments")
		}
		return fn(args)
	}
}

// Merge returns a table holding the entries of both, other winning on conflict.
func (t FunctionTable) Merge(other FunctionTable) FunctionTable {
	out := make(FunctionTable, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
