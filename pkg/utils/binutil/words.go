package binutil

import (
	"math"

	"github.com/pkg/errors"

	"modbushil/pkg/runtime/constant"
)

// Multi-word values put the least significant word at index 0.

const maxWords = 4

func checkWords(n int) error {
	if n < 1 || n > maxWords {
		return errors.Wrapf(constant.ErrEncoding, "integer values need 1 to %d registers, got %d", maxWords, n)
	}
	return nil
}

// RegisterToUint concatenates the words of regs.
func RegisterToUint(regs []uint16) (uint64, error) {
	if err := checkWords(len(regs)); err != nil {
		return 0, err
	}
	var result uint64
	for i, reg := range regs {
		result |= uint64(reg) << (16 * uint(i))
	}
	return result, nil
}

// UintToRegister splits value into n words, dropping the bits that do not fit.
func UintToRegister(value uint64, n int) ([]uint16, error) {
	if err := checkWords(n); err != nil {
		return nil, err
	}
	regs := make([]uint16, n)
	for i := 0; i < n; i++ {
		regs[i] = uint16(value >> (16 * uint(i)))
	}
	return regs, nil
}

// RegisterToInt reads regs as a two's complement value of 16*len(regs) bits.
func RegisterToInt(regs []uint16) (int64, error) {
	u, err := RegisterToUint(regs)
	if err != nil {
		return 0, err
	}
	bits := 16 * uint(len(regs))
	if bits < 64 && u&(1<<(bits-1)) != 0 {
		return int64(u) - int64(1)<<bits, nil
	}
	return int64(u), nil
}

// IntToRegister writes value as two's complement over n words.
func IntToRegister(value int64, n int) ([]uint16, error) {
	return UintToRegister(uint64(value), n)
}

// RegisterToFloat decodes an IEEE-754 binary32 (2 words) or binary64 (4 words).
func RegisterToFloat(regs []uint16) (float64, error) {
	switch len(regs) {
	case 2:
		u, _ := RegisterToUint(regs)
		return float64(math.Float32frombits(uint32(u))), nil
	case 4:
		u, _ := RegisterToUint(regs)
		return math.Float64frombits(u), nil
	}
	return 0, errors.Wrapf(constant.ErrEncoding, "float values need 2 (float32) or 4 (float64) registers, got %d", len(regs))
}

// FloatToRegister encodes value as binary32 (n=2) or binary64 (n=4).
func FloatToRegister(value float64, n int) ([]uint16, error) {
	switch n {
	case 2:
		return UintToRegister(uint64(math.Float32bits(float32(value))), n)
	case 4:
		return UintToRegister(math.Float64bits(value), n)
	}
	return nil, errors.Wrapf(constant.ErrEncoding, "float values need 2 (float32) or 4 (float64) registers, got %d", n)
}
