package convutil

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbushil/pkg/runtime/constant"
)

func TestToFloat64(t *testing.T) {
	for _, v := range []interface{}{3, int8(3), int64(3), uint16(3), uint64(3), float32(3), 3.0, "3", json.Number("3")} {
		f, err := ToFloat64(v)
		require.NoError(t, err, "%T", v)
		assert.Equal(t, 3.0, f)
	}
	f, err := ToFloat64(true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	_, err = ToFloat64("abc")
	assert.True(t, errors.Is(err, constant.ErrEncoding))
	_, err = ToFloat64([]int{1})
	assert.True(t, errors.Is(err, constant.ErrEncoding))
}

func TestToInt64(t *testing.T) {
	i, err := ToInt64(-3.9)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), i)

	i, err = ToInt64(uint64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)
}

func TestToUint64(t *testing.T) {
	u, err := ToUint64(12.7)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), u)

	u, err = ToUint64(int64(-1))
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), u)
}

func TestToBool(t *testing.T) {
	cases := []struct {
		in     interface{}
		expect bool
	}{
		{true, true},
		{0, false},
		{0.5, true},
		{int64(-2), true},
		{"true", true},
		{"0", false},
	}
	for _, c := range cases {
		b, err := ToBool(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.expect, b, "%v", c.in)
	}
}
