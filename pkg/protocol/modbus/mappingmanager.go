package modbus

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	modbus "modbushil/pkg/protocol/modbus/runtime"
	"modbushil/pkg/runtime"
	"modbushil/pkg/runtime/constant"
	"modbushil/pkg/utils/convutil"
)

// MappingManager moves variables between the buffer of one model instance and
// its Modbus device.
type MappingManager struct {
	settings *runtime.IntegrationSettings
	client   *ClientManager

	mux    sync.Mutex
	buffer map[string]interface{}
}

func NewMappingManager(settings *runtime.IntegrationSettings, client modbus.Client) *MappingManager {
	return &MappingManager{
		settings: settings,
		client:   NewClientManager(client, settings.IOBundles),
		buffer:   make(map[string]interface{}),
	}
}

func (m *MappingManager) Settings() *runtime.IntegrationSettings {
	return m.settings
}

func (m *MappingManager) Connect() error {
	return m.client.Connect()
}

func (m *MappingManager) Close() error {
	return m.client.Disconnect()
}

// ReadCycle reads the device, decodes every readable mapped variable and runs
// the read methods.
func (m *MappingManager) ReadCycle() error {
	m.mux.Lock()
	defer m.mux.Unlock()

	if err := m.client.DoRead(); err != nil {
		return err
	}
	for _, name := range m.settings.VariableNames() {
		v := m.settings.Variables[name]
		if !v.Mapped() || !v.IOType.Readable() {
			continue
		}
		value, err := m.decode(v)
		if err != nil {
			return errors.Wrapf(err, "variable '%s'", name)
		}
		m.buffer[name] = value
	}
	for _, method := range m.settings.ReadMethods {
		if err := m.invoke(method.Output(), method.Invoke); err != nil {
			return err
		}
	}
	klog.V(5).InfoS("Succeed to run read cycle", "variables", len(m.buffer))
	return nil
}

// WriteCycle runs the write methods, encodes every writable mapped variable and
// writes the device.
func (m *MappingManager) WriteCycle() error {
	m.mux.Lock()
	defer m.mux.Unlock()

	for _, method := range m.settings.WriteMethods {
		if err := m.invoke(method.Output(), method.Invoke); err != nil {
			return err
		}
	}
	for _, name := range m.settings.VariableNames() {
		v := m.settings.Variables[name]
		if !v.Mapped() || !v.IOType.Writable() {
			continue
		}
		value, ok := m.buffer[name]
		if !ok {
			return errors.Wrapf(constant.ErrMissingVariable, "Variable '%s' not found in variable buffer.", name)
		}
		if err := m.encode(v, value); err != nil {
			return errors.Wrapf(err, "variable '%s'", name)
		}
	}
	if err := m.client.DoWrite(); err != nil {
		return err
	}
	klog.V(5).InfoS("Succeed to run write cycle", "variables", len(m.buffer))
	return nil
}

func (m *MappingManager) invoke(output string, fn func(map[string]interface{}) (float64, error)) error {
	out, err := fn(m.buffer)
	if err != nil {
		return err
	}
	if v, ok := m.settings.Variables[output]; ok && v.DataType == constant.BOOL {
		m.buffer[output] = out != 0
		return nil
	}
	m.buffer[output] = out
	return nil
}

func (m *MappingManager) decode(v *runtime.VariableMapping) (interface{}, error) {
	r := *v.Register
	switch {
	case v.DataType == constant.BOOL:
		return m.client.GetBool(r)
	case v.DataType.IsSigned():
		i, err := m.client.GetInt(r)
		if err != nil {
			return nil, err
		}
		if v.Scale != 1 {
			return int64(float64(i) * v.Scale), nil
		}
		return i, nil
	case v.DataType.IsUnsigned():
		u, err := m.client.GetUint(r)
		if err != nil {
			return nil, err
		}
		if v.Scale != 1 {
			f := float64(u) * v.Scale
			if f < 0 {
				return int64(f), nil
			}
			return uint64(f), nil
		}
		return u, nil
	default:
		f, err := m.client.GetFloat(r)
		if err != nil {
			return nil, err
		}
		return f * v.Scale, nil
	}
}

func (m *MappingManager) encode(v *runtime.VariableMapping, value interface{}) error {
	r := *v.Register
	switch {
	case v.DataType == constant.BOOL:
		b, err := convutil.ToBool(value)
		if err != nil {
			return err
		}
		return m.client.SetBool(r, b)
	case v.DataType.IsInteger():
		var raw int64
		if v.Scale != 1 {
			f, err := convutil.ToFloat64(value)
			if err != nil {
				return err
			}
			raw = int64(f / v.Scale)
		} else if v.DataType.IsUnsigned() {
			u, err := convutil.ToUint64(value)
			if err != nil {
				return err
			}
			return m.client.SetUint(r, u)
		} else {
			i, err := convutil.ToInt64(value)
			if err != nil {
				return err
			}
			raw = i
		}
		if v.DataType.IsUnsigned() {
			return m.client.SetUint(r, uint64(raw))
		}
		return m.client.SetInt(r, raw)
	default:
		f, err := convutil.ToFloat64(value)
		if err != nil {
			return err
		}
		return m.client.SetFloat(r, f/v.Scale)
	}
}

// UpdateVariableBuffer merges values into the buffer.
func (m *MappingManager) UpdateVariableBuffer(values map[string]interface{}) {
	m.mux.Lock()
	defer m.mux.Unlock()
	for k, v := range values {
		m.buffer[k] = v
	}
}

// GetAllExposedReadVariables returns the buffered values the host reads.
func (m *MappingManager) GetAllExposedReadVariables() map[string]interface{} {
	m.mux.Lock()
	defer m.mux.Unlock()
	out := make(map[string]interface{})
	for _, name := range m.settings.PersistentVariables() {
		if v, ok := m.buffer[name]; ok {
			out[name] = v
		}
	}
	return out
}

func (m *MappingManager) VariableValue(name string) (interface{}, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	v, ok := m.buffer[name]
	return v, ok
}

func (m *MappingManager) SetVariableValue(name string, value interface{}) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.buffer[name] = value
}
