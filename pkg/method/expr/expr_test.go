package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, src string, vars map[string]float64) float64 {
	t.Helper()
	e, err := Compile(src)
	require.NoError(t, err, src)
	v, err := e.Evaluate(vars)
	require.NoError(t, err, src)
	return v
}

func TestArithmetic(t *testing.T) {
	cases := map[string]float64{
		"5 + 3":           8,
		"2 + 3 * 4":       14,
		"(2 + 3) * 4":     20,
		"10 / 4":          2.5,
		"7 // 2":          3,
		"-7 // 2":         -4,
		"7 % 3":           1,
		"-7 % 3":          2,
		"7 % -3":          -2,
		"2 ** 3 ** 2":     512,
		"-2 ** 2":         -4,
		"2 ** -1":         0.5,
		"1.5e3 + .5":      1500.5,
		"abs(-3) + 1":     4,
		"max(1, 7, 3)":    7,
		"min(4, 2)":       2,
		"round(2.5)":      2,
		"round(3.5)":      4,
		"round(1.234, 2)": 1.23,
		"int(-3.7)":       -3,
		"sqrt(16)":        4,
		"pow(2, 10)":      1024,
	}
	for src, expect := range cases {
		assert.InDelta(t, expect, eval(t, src, nil), 1e-9, src)
	}
}

func TestVariables(t *testing.T) {
	vars := map[string]float64{"a": 2, "b": 3, "c": 4}
	assert.Equal(t, float64(10), eval(t, "$(a) * $(b) + $(c)", vars))

	e, err := Compile("$(P_mw) * 1000 + $(a) - $(P_mw)")
	require.NoError(t, err)
	assert.Equal(t, []string{"P_mw", "a"}, e.Variables())
	assert.Equal(t, "$(P_mw) * 1000 + $(a) - $(P_mw)", e.String())
}

func TestLogic(t *testing.T) {
	vars := map[string]float64{"x": 5, "zero": 0}
	cases := map[string]float64{
		"1 if $(x) > 3 else 2":    1,
		"1 if $(x) > 9 else 2":    2,
		"$(x) > 3 ? 10 : 20":      10,
		"$(zero) ? 10 : 20":       20,
		"1 < $(x) < 10":           1,
		"1 < $(x) < 4":            0,
		"$(x) == 5 and $(x) != 4": 1,
		"$(zero) or 7":            7,
		"3 and 4":                 4,
		"$(zero) && 4":            0,
		"not $(zero)":             1,
		"!$(x) || $(zero)":        0,
		"True + True":             2,
		"False or $(x) >= 5":      1,
	}
	for src, expect := range cases {
		assert.Equal(t, expect, eval(t, src, vars), src)
	}
	assert.Equal(t, float64(3), eval(t, "2 if 0 else 3 if 1 else 4", nil))
}

func TestShortCircuit(t *testing.T) {
	// the right side is never evaluated
	assert.Equal(t, float64(1), eval(t, "1 or 1 / 0", nil))
	assert.Equal(t, float64(5), eval(t, "5 if 1 else 1 / 0", nil))
}

func TestEvaluateErrors(t *testing.T) {
	e := MustCompile("$(a) / $(b)")
	_, err := e.Evaluate(map[string]float64{"a": 1, "b": 0})
	assert.True(t, errors.Is(err, ErrDivisionByZero))

	_, err = e.Evaluate(map[string]float64{"a": 1})
	assert.True(t, errors.Is(err, ErrUnknownVariable))

	_, err = MustCompile("sqrt(-1)").Evaluate(nil)
	assert.True(t, errors.Is(err, ErrDomain))

	_, err = MustCompile("5 % 0").Evaluate(nil)
	assert.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"1 +",
		"(1 + 2",
		"1 + 2)",
		"$(a",
		"$()",
		"$a",
		"__import__('os')",
		"open(1)",
		"abs()",
		"pow(1)",
		"x + 1",
		"1 if 2",
		"1 ? 2",
		"1 @ 2",
		"[1]",
	} {
		_, err := Compile(src)
		assert.True(t, errors.Is(err, ErrSyntax), "%q: %v", src, err)
	}
}

func TestMustCompilePanics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("1 +") })
}
