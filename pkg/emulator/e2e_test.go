package emulator

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbusruntime "modbushil/pkg/protocol/modbus/runtime"
	"modbushil/pkg/registry"
	"modbushil/pkg/simulator"
)

func startBattery(t *testing.T) (*Battery, string) {
	t.Helper()
	b := hourly(t)
	addr := freeAddr(t)
	require.NoError(t, b.Start(addr))
	return b, addr
}

func TestTCPClientAgainstBattery(t *testing.T) {
	b, addr := startBattery(t)

	client := modbusruntime.NewTCPClient(addr, modbusruntime.TCPClientOptions{Timeout: time.Second})
	require.NoError(t, client.Open())
	defer client.Close()

	require.NoError(t, client.WriteMultipleRegisters(RegisterPowerTarget, []uint16{1200, StateCharging}))
	assert.Equal(t, uint16(1200), b.Holding(RegisterPowerTarget))
	assert.Equal(t, StateCharging, b.Holding(RegisterState))

	b.Step()
	regs, err := client.ReadHoldingRegisters(RegisterPowerTarget, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1200, StateCharging, 1200, 1200}, regs)
}

func TestSimulatorAgainstBattery(t *testing.T) {
	b, addr := startBattery(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	reg := registry.NewRegistry()
	_, err = reg.LoadDir("../../models")
	require.NoError(t, err)
	sim := simulator.NewSimulator(reg, simulator.WithClientFactory(
		modbusruntime.TCPClientFactory(modbusruntime.TCPClientOptions{Timeout: time.Second}),
	))
	_, err = sim.Init("hil", 1, 1, false)
	require.NoError(t, err)
	defer sim.Finalize()
	entities, err := sim.Create(1, "battery", host, port)
	require.NoError(t, err)
	eid := entities[0].EID

	charge := simulator.Inputs{eid: {"P_target[MW]": {"ctrl": -0.0025}}}
	_, err = sim.Step(0, charge, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(2500), b.Holding(RegisterPowerTarget))
	assert.Equal(t, StateCharging, b.Holding(RegisterState))

	b.Step()
	_, err = sim.Step(1, charge, 0)
	require.NoError(t, err)

	data, err := sim.GetData(simulator.Outputs{eid: nil})
	require.NoError(t, err)
	values := data[eid]
	assert.InDelta(t, -0.0025, values["P[MW]"], 1e-12)
	assert.InDelta(t, 0.0025, values["P_gen[MW]"], 1e-12)
	assert.InDelta(t, 0.0, values["P_load[MW]"], 1e-12)
	assert.InDelta(t, 0.0025, values["E[MWH]"], 1e-12)
	assert.InDelta(t, 0.25, values["SoC"], 1e-12)
}
