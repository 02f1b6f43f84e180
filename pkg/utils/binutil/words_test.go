package binutil

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbushil/pkg/runtime/constant"
)

func TestRegisterToInt(t *testing.T) {
	cases := []struct {
		regs   []uint16
		expect int64
	}{
		{[]uint16{0x0001}, 1},
		{[]uint16{0xFFFF}, -1},
		{[]uint16{0x8000}, -32768},
		{[]uint16{0xFFF6, 0xFFFF}, -10},
		{[]uint16{0x5678, 0x1234}, 0x12345678},
		{[]uint16{0x3456, 0x9012, 0x5678, 0x1234}, 0x1234567890123456},
		{[]uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF}, -1},
	}
	for _, c := range cases {
		actual, err := RegisterToInt(c.regs)
		require.NoError(t, err)
		assert.Equal(t, c.expect, actual, "regs %#v", c.regs)
	}
}

func TestIntToRegister(t *testing.T) {
	regs, err := IntToRegister(-10, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xFFF6, 0xFFFF}, regs)

	regs, err = IntToRegister(0x12345678, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x5678, 0x1234}, regs)

	regs, err = IntToRegister(0x1234567890123456, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x3456, 0x9012, 0x5678, 0x1234}, regs)

	regs, err = IntToRegister(-1, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xFFFF}, regs)
}

func TestUintRoundTrip(t *testing.T) {
	for _, regs := range [][]uint16{
		{0},
		{0xFFFF},
		{0x0001, 0x8000},
		{0xABCD, 0x1234, 0x0000, 0xFFFF},
	} {
		u, err := RegisterToUint(regs)
		require.NoError(t, err)
		back, err := UintToRegister(u, len(regs))
		require.NoError(t, err)
		assert.Equal(t, regs, back)

		i, err := RegisterToInt(regs)
		require.NoError(t, err)
		back, err = IntToRegister(i, len(regs))
		require.NoError(t, err)
		assert.Equal(t, regs, back)
	}
}

func TestUintToRegisterMasks(t *testing.T) {
	regs, err := UintToRegister(0x123456789, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x6789, 0x2345}, regs)
}

func TestFloatToRegister(t *testing.T) {
	regs, err := FloatToRegister(1234.5678, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x522b, 0x449a}, regs)

	regs, err = FloatToRegister(1234.56789, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xc6e7, 0x84f4, 0x4a45, 0x4093}, regs)

	regs, err = FloatToRegister(-12.34, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x70a4, 0xc145}, regs)
}

func TestRegisterToFloat(t *testing.T) {
	f, err := RegisterToFloat([]uint16{0x522b, 0x449a})
	require.NoError(t, err)
	assert.InDelta(t, 1234.5678, f, 1e-3)

	f, err = RegisterToFloat([]uint16{0xc6e7, 0x84f4, 0x4a45, 0x4093})
	require.NoError(t, err)
	assert.InDelta(t, 1234.56789, f, 1e-9)

	for _, v := range []float64{0, -1.5, math.Pi, 1e10} {
		regs, err := FloatToRegister(v, 4)
		require.NoError(t, err)
		back, err := RegisterToFloat(regs)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestEncodingWordCount(t *testing.T) {
	_, err := RegisterToFloat([]uint16{1, 2, 3})
	assert.True(t, errors.Is(err, constant.ErrEncoding))

	_, err = FloatToRegister(1, 1)
	assert.True(t, errors.Is(err, constant.ErrEncoding))

	_, err = RegisterToInt(nil)
	assert.True(t, errors.Is(err, constant.ErrEncoding))

	_, err = UintToRegister(1, 5)
	assert.True(t, errors.Is(err, constant.ErrEncoding))
}

func TestBoolPacking(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, false, false, true}
	packed := PackBools(bits)
	assert.Equal(t, []byte{0x0D, 0x01}, packed)
	assert.Equal(t, bits, UnpackBools(packed, len(bits)))
}

func TestWordBytes(t *testing.T) {
	words := []uint16{0x1234, 0xABCD}
	buf := WordsToBytes(words)
	assert.Equal(t, []byte{0x12, 0x34, 0xAB, 0xCD}, buf)
	assert.Equal(t, words, BytesToWords(buf))
}
