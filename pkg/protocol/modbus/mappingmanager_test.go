package modbus

import (
	"errors"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbushil/pkg/method"
	"modbushil/pkg/protocol/modbus/modbustest"
	"modbushil/pkg/runtime"
	"modbushil/pkg/runtime/constant"
)

func loadSettings(t *testing.T, doc string) *runtime.IntegrationSettings {
	t.Helper()
	c, err := runtime.LoadModelConfig([]byte(doc))
	require.NoError(t, err)
	s, err := runtime.NewIntegrationSettings(c, method.DefaultFunctions())
	require.NoError(t, err)
	return s
}

const scaledModel = `
modbus_io_bundles:
  read:
    holding_register: ["0-9"]
    coil: ["0-1"]
  write:
    holding_register: ["10-19"]
    coil: ["2"]
variables:
  temp:
    iotype: read
    datatype: int16
    register: H0
    scale: 0.1
    mosaik: true
  counter:
    iotype: read
    datatype: uint32
    register: H1-2
  level:
    iotype: read
    datatype: float32
    register: H3-4
    scale: 2
    mosaik: true
  alarm:
    iotype: read
    datatype: bool
    register: C1
    mosaik: true
  setpoint:
    iotype: write
    datatype: int16
    register: H10
    scale: 0.5
    mosaik: true
  wide:
    iotype: write
    datatype: float64
    register: H12-15
  enable:
    iotype: write
    datatype: bool
    register: C2
methods:
  read:
    - set: hot
      action: eval
      expression: "$(temp) > 20"
  write:
    - set: wide
      action: function
      function: mul
      parameters: [setpoint, setpoint]
    - set: enable
      action: eval
      expression: "$(setpoint) > 0"
`

func TestReadCycle(t *testing.T) {
	client := modbustest.NewClient()
	client.SetHolding(0, 0xFF9C) // -100
	client.SetHolding(1, 0x0001, 0x0002)
	client.SetHolding(3, 0x522b, 0x449a)
	client.Coils[1] = true

	m := NewMappingManager(loadSettings(t, scaledModel), client)
	require.NoError(t, m.ReadCycle())

	temp, _ := m.VariableValue("temp")
	assert.Equal(t, int64(-10), temp)
	counter, _ := m.VariableValue("counter")
	assert.Equal(t, uint64(0x00020001), counter)
	level, _ := m.VariableValue("level")
	assert.InDelta(t, 2469.1356, level, 1e-2)
	hot, _ := m.VariableValue("hot")
	assert.Equal(t, 0.0, hot)

	exposed := m.GetAllExposedReadVariables()
	assert.Equal(t, []string{"alarm", "level", "temp"}, keys(exposed))
	assert.Equal(t, true, exposed["alarm"])
}

func TestReadCycleTruncatesScaledIntegers(t *testing.T) {
	client := modbustest.NewClient()
	client.SetHolding(0, 15) // 1.5 truncates to 1
	m := NewMappingManager(loadSettings(t, scaledModel), client)
	require.NoError(t, m.ReadCycle())
	temp, _ := m.VariableValue("temp")
	assert.Equal(t, int64(1), temp)

	client.SetHolding(0, 0xFFF1) // -1.5 truncates toward zero
	require.NoError(t, m.ReadCycle())
	temp, _ = m.VariableValue("temp")
	assert.Equal(t, int64(-1), temp)
}

func TestWriteCycle(t *testing.T) {
	client := modbustest.NewClient()
	m := NewMappingManager(loadSettings(t, scaledModel), client)

	m.UpdateVariableBuffer(map[string]interface{}{"setpoint": 2.75})
	require.NoError(t, m.WriteCycle())

	// 2.75 / 0.5 = 5.5, truncated
	assert.Equal(t, []uint16{5}, client.HoldingWords(10, 1))
	wide, _ := m.VariableValue("wide")
	assert.Equal(t, 7.5625, wide)
	assert.Equal(t, []uint16{0x0000, 0x0000, 0x4000, 0x401e}, client.HoldingWords(12, 4))
	enable, _ := m.VariableValue("enable")
	assert.Equal(t, true, enable)
	assert.True(t, client.Coils[2])

	calls := client.CallsOf("WriteMultipleRegisters")
	require.Len(t, calls, 1)
	assert.Equal(t, uint16(10), calls[0].Start)
	assert.Len(t, calls[0].Words, 10)
}

func TestWriteCycleMissingVariable(t *testing.T) {
	m := NewMappingManager(loadSettings(t, scaledModel), modbustest.NewClient())
	err := m.WriteCycle()
	assert.True(t, errors.Is(err, constant.ErrMissingVariable))
}

func TestWriteCycleEncodingError(t *testing.T) {
	m := NewMappingManager(loadSettings(t, `
modbus_io_bundles:
  write:
    holding_register: ["0"]
variables:
  sp:
    iotype: write
    datatype: uint16
    register: H0
    mosaik: true
`), modbustest.NewClient())
	m.SetVariableValue("sp", "high")
	assert.True(t, errors.Is(m.WriteCycle(), constant.ErrEncoding))

	m.SetVariableValue("sp", -1)
	require.NoError(t, m.WriteCycle())
}

func TestCycleIOError(t *testing.T) {
	client := modbustest.NewClient()
	client.FailIO = true
	m := NewMappingManager(loadSettings(t, scaledModel), client)
	assert.True(t, errors.Is(m.ReadCycle(), constant.ErrIO))

	m.UpdateVariableBuffer(map[string]interface{}{"setpoint": 1})
	assert.True(t, errors.Is(m.WriteCycle(), constant.ErrIO))
}

func TestBatteryCycle(t *testing.T) {
	data, err := os.ReadFile("../../../models/battery.yaml")
	require.NoError(t, err)
	client := modbustest.NewClient()
	m := NewMappingManager(loadSettings(t, string(data)), client)

	m.UpdateVariableBuffer(map[string]interface{}{"P_target[MW]": -0.0025})
	require.NoError(t, m.WriteCycle())
	// charging at 2500 W
	assert.Equal(t, []uint16{2500, 1}, client.HoldingWords(1, 2))

	client.SetHolding(3, 2500, 5000)
	require.NoError(t, m.ReadCycle())
	exposed := m.GetAllExposedReadVariables()
	assert.InDelta(t, -0.0025, exposed["P[MW]"], 1e-12)
	assert.InDelta(t, 0.0025, exposed["P_gen[MW]"], 1e-12)
	assert.InDelta(t, 0.0, exposed["P_load[MW]"], 1e-12)
	assert.InDelta(t, 0.005, exposed["E[MWH]"], 1e-12)
	assert.InDelta(t, 0.5, exposed["SoC"], 1e-12)
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
