// Package convutil coerces loosely typed values, such as decoded JSON numbers,
// into the value kinds held by a variable buffer.
package convutil

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"modbushil/pkg/runtime/constant"
)

func ToFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, errors.Wrapf(constant.ErrEncoding, "%q is not a number", x.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, errors.Wrapf(constant.ErrEncoding, "%q is not a number", x)
		}
		return f, nil
	}
	return 0, errors.Wrapf(constant.ErrEncoding, "%v (%T) is not a number", v, v)
}

// ToInt64 truncates floats toward zero.
func ToInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	}
	f, err := ToFloat64(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Wrapf(constant.ErrEncoding, "%v has no integer value", f)
	}
	return int64(f), nil
}

// ToUint64 truncates floats toward zero. Negative values wrap into two's
// complement, which is what a register write of them produces.
func ToUint64(v interface{}) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case uint:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case float64:
		if x >= 0 && x < math.MaxUint64 {
			return uint64(x), nil
		}
	case float32:
		if x >= 0 {
			return uint64(x), nil
		}
	}
	i, err := ToInt64(v)
	if err != nil {
		return 0, err
	}
	return uint64(i), nil
}

// ToBool treats any non-zero number as true.
func ToBool(v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	if s, ok := v.(string); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, nil
		}
	}
	f, err := ToFloat64(v)
	if err != nil {
		return false, err
	}
	return f != 0, nil
}
