package runtime

import (
	"github.com/pkg/errors"

	"modbushil/pkg/runtime/constant"
)

// VariableMapping binds a named variable to an optional register range.
type VariableMapping struct {
	Name     string
	IOType   constant.IOType
	DataType constant.DataType
	// Register is nil for variables that only live in the buffer.
	Register *RegisterRange
	Scale    float64
	// Exposed marks the variable as visible to the simulation host.
	Exposed bool
}

func NewVariableMapping(name string, c VariableConfig) (*VariableMapping, error) {
	io, err := constant.ParseIOType(c.IOType)
	if err != nil {
		return nil, errors.Wrapf(err, "variable '%s'", name)
	}
	v := &VariableMapping{Name: name, IOType: io, DataType: constant.FLOAT64, Scale: 1, Exposed: c.Mosaik}

	if c.DataType != "" {
		dt, err := constant.ParseDataType(c.DataType)
		if err != nil {
			return nil, errors.Wrapf(err, "variable '%s'", name)
		}
		v.DataType = dt
	}

	if c.Scale != nil {
		if *c.Scale == 0 {
			return nil, errors.Wrapf(constant.ErrConfig, "variable '%s' has a scale of zero", name)
		}
		v.Scale = *c.Scale
	}

	if c.Register != "" {
		if c.DataType == "" {
			return nil, errors.Wrapf(constant.ErrConfig, "variable '%s': If 'register' is specified, 'datatype' must also be specified.", name)
		}
		r, err := ParseRegisterRange(c.Register, constant.NoRegisterType)
		if err != nil {
			return nil, errors.Wrapf(err, "variable '%s'", name)
		}
		if r.Type.IsDiscrete() && v.DataType != constant.BOOL {
			return nil, errors.Wrapf(constant.ErrConfig, "variable '%s' maps %s to discrete register %s", name, v.DataType, r)
		}
		if r.Length != int(v.DataType.Words()) {
			return nil, errors.Wrapf(constant.ErrConfig, "variable '%s' of type %s needs %d registers, %s has %d",
				name, v.DataType, v.DataType.Words(), r, r.Length)
		}
		v.Register = &r
	}
	return v, nil
}

// Mapped reports whether the variable is backed by a register.
func (v *VariableMapping) Mapped() bool {
	return v.Register != nil
}

// DefaultValue is the zero value in the buffer kind of the data type.
func (v *VariableMapping) DefaultValue() interface{} {
	switch {
	case v.DataType == constant.BOOL:
		return false
	case v.DataType.IsSigned():
		return int64(0)
	case v.DataType.IsUnsigned():
		return uint64(0)
	}
	return float64(0)
}
