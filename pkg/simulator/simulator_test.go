package simulator

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbushil/pkg/protocol/modbus/modbustest"
	modbusruntime "modbushil/pkg/protocol/modbus/runtime"
	"modbushil/pkg/registry"
	"modbushil/pkg/runtime"
	"modbushil/pkg/runtime/constant"
)

const loopModel = `
modbus_io_bundles:
  read:
    holding_register: ["1"]
  write:
    holding_register: ["0"]
variables:
  setpoint: {iotype: write, datatype: int16, register: H0, mosaik: true}
  measured: {iotype: read, datatype: int16, register: H1, mosaik: true}
  doubled: {iotype: read, mosaik: true}
methods:
  read:
    - set: doubled
      action: eval
      expression: "$(measured) * 2"
`

// devices hands out one fake device per endpoint.
type devices struct {
	mux     sync.Mutex
	clients map[string]*modbustest.Client
}

func newDevices() *devices {
	return &devices{clients: map[string]*modbustest.Client{}}
}

func (d *devices) factory() modbusruntime.ClientFactory {
	return func(host string, port int) modbusruntime.Client {
		return d.get(host, port)
	}
}

func (d *devices) get(host string, port int) *modbustest.Client {
	d.mux.Lock()
	defer d.mux.Unlock()
	key := fmt.Sprintf("%s:%d", host, port)
	c, ok := d.clients[key]
	if !ok {
		c = modbustest.NewClient()
		d.clients[key] = c
	}
	return c
}

type published struct {
	session string
	eid     string
	time    int64
	values  map[string]interface{}
}

type recorder struct {
	mux   sync.Mutex
	calls []published
}

func (r *recorder) Publish(session, eid string, simTime int64, values map[string]interface{}) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.calls = append(r.calls, published{session: session, eid: eid, time: simTime, values: values})
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()
	_, err := reg.LoadDir("../../models")
	require.NoError(t, err)
	config, err := runtime.LoadModelConfig([]byte(loopModel))
	require.NoError(t, err)
	require.NoError(t, reg.RegisterConfig("loop", config))
	return reg
}

func newSimulator(t *testing.T, d *devices, opts ...Option) *Simulator {
	t.Helper()
	opts = append([]Option{WithClientFactory(d.factory())}, opts...)
	return NewSimulator(newRegistry(t), opts...)
}

func input(eid, attr string, v interface{}) Inputs {
	return Inputs{eid: {attr: {"src": v}}}
}

func TestLifecycleErrors(t *testing.T) {
	sim := newSimulator(t, newDevices())

	_, err := sim.Create(1, "loop", "localhost", 502)
	assert.True(t, errors.Is(err, ErrNotInitialized))
	_, err = sim.Step(0, nil, 0)
	assert.True(t, errors.Is(err, ErrNotInitialized))
	assert.NoError(t, sim.Finalize())

	_, err = sim.Init("sim-0", 1, 0, false)
	assert.True(t, errors.Is(err, constant.ErrConfig))
	assert.Contains(t, err.Error(), "Step size must be positive and non-zero")

	_, err = sim.Init("sim-0", 1, 60, false)
	require.NoError(t, err)
	_, err = sim.Init("sim-0", 1, 60, false)
	assert.True(t, errors.Is(err, ErrAlreadyInitialized))

	_, err = sim.Create(1, "heater", "localhost", 502)
	assert.True(t, errors.Is(err, constant.ErrUnknownModel))
	_, err = sim.Create(-1, "loop", "localhost", 502)
	assert.True(t, errors.Is(err, constant.ErrConfig))

	require.NoError(t, sim.Finalize())
	_, err = sim.Step(0, nil, 0)
	assert.True(t, errors.Is(err, ErrFinalized))
	assert.NoError(t, sim.Finalize())
}

func TestMeta(t *testing.T) {
	sim := newSimulator(t, newDevices())
	meta, err := sim.Init("sim-0", 1, 1, false)
	require.NoError(t, err)

	assert.Equal(t, "3.0", meta.APIVersion)
	assert.Equal(t, "time-based", meta.Type)
	battery := meta.Models["battery"]
	assert.True(t, battery.Public)
	assert.Equal(t, []string{"host", "port"}, battery.Params)
	assert.Equal(t, []string{"P_target[MW]"}, battery.NonTrigger)
	assert.Equal(t, []string{"E[MWH]", "P[MW]", "P_gen[MW]", "P_load[MW]", "SoC"}, battery.Persistent)
	assert.Len(t, battery.Attrs, 6)
	assert.Equal(t, meta, sim.Meta())
}

func TestCreate(t *testing.T) {
	d := newDevices()
	sim := newSimulator(t, d)
	_, err := sim.Init("sim-0", 1, 1, false)
	require.NoError(t, err)

	entities, err := sim.Create(2, "loop", "10.0.0.1", 502)
	require.NoError(t, err)
	assert.Equal(t, []Entity{
		{EID: "loop_10.0.0.1_502_0", Type: "loop"},
		{EID: "loop_10.0.0.1_502_1", Type: "loop"},
	}, entities)

	entities, err = sim.Create(1, "battery", "10.0.0.2", 5020)
	require.NoError(t, err)
	assert.Equal(t, "battery_10.0.0.2_5020_0", entities[0].EID)

	entities, err = sim.Create(1, "loop", "10.0.0.3", 502)
	require.NoError(t, err)
	assert.Equal(t, "loop_10.0.0.3_502_2", entities[0].EID)

	assert.Equal(t, []string{
		"loop_10.0.0.1_502_0", "loop_10.0.0.1_502_1", "battery_10.0.0.2_5020_0", "loop_10.0.0.3_502_2",
	}, sim.Entities())
	assert.True(t, d.get("10.0.0.2", 5020).IsOpen())
}

func TestCreateToleratesConnectFailure(t *testing.T) {
	d := newDevices()
	d.get("down", 502).FailOpen = true
	sim := newSimulator(t, d)
	_, err := sim.Init("sim-0", 1, 1, false)
	require.NoError(t, err)

	entities, err := sim.Create(1, "loop", "down", 502)
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestSyncStep(t *testing.T) {
	d := newDevices()
	rec := &recorder{}
	sim := newSimulator(t, d, WithPublisher(rec))
	_, err := sim.Init("sim-0", 1, 60, false)
	require.NoError(t, err)
	_, err = sim.Create(1, "loop", "dev", 502)
	require.NoError(t, err)
	eid := "loop_dev_502_0"
	d.get("dev", 502).SetHolding(1, 21)

	next, err := sim.Step(120, Inputs{eid: {"setpoint": {"a": 2, "b": 3.0}}}, 600)
	require.NoError(t, err)
	assert.Equal(t, int64(180), next)
	assert.Equal(t, []uint16{5}, d.get("dev", 502).HoldingWords(0, 1))

	data, err := sim.GetData(Outputs{eid: nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"measured": int64(21), "doubled": 42.0}, data[eid])

	data, err = sim.GetData(Outputs{eid: {"doubled", "setpoint"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"doubled": 42.0}, data[eid])

	// returned data is a copy
	data[eid]["doubled"] = 0.0
	data, err = sim.GetData(Outputs{eid: {"doubled"}})
	require.NoError(t, err)
	assert.Equal(t, 42.0, data[eid]["doubled"])

	_, err = sim.GetData(Outputs{"nope": nil})
	assert.True(t, errors.Is(err, ErrUnknownEntity))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, sim.Session(), rec.calls[0].session)
	assert.Equal(t, eid, rec.calls[0].eid)
	assert.Equal(t, int64(120), rec.calls[0].time)

	st := sim.Stats()
	assert.Equal(t, int64(1), st.Steps)
	assert.Equal(t, int64(1), st.Cycles)
	assert.Equal(t, int64(0), st.CycleErrors)
}

func TestSyncStepBattery(t *testing.T) {
	d := newDevices()
	sim := newSimulator(t, d)
	_, err := sim.Init("sim-0", 1, 1, false)
	require.NoError(t, err)
	_, err = sim.Create(1, "battery", "bat", 5020)
	require.NoError(t, err)
	eid := "battery_bat_5020_0"
	dev := d.get("bat", 5020)
	dev.SetHolding(3, 2500, 5000)

	_, err = sim.Step(0, input(eid, "P_target[MW]", -0.0025), 0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{2500, 1}, dev.HoldingWords(1, 2))

	data, err := sim.GetData(Outputs{eid: {"P[MW]", "SoC"}})
	require.NoError(t, err)
	assert.InDelta(t, -0.0025, data[eid]["P[MW]"], 1e-12)
	assert.InDelta(t, 0.5, data[eid]["SoC"], 1e-12)
}

func TestStepUnknownEntity(t *testing.T) {
	sim := newSimulator(t, newDevices())
	_, err := sim.Init("sim-0", 1, 1, false)
	require.NoError(t, err)
	_, err = sim.Step(0, input("ghost_0", "setpoint", 1), 0)
	assert.True(t, errors.Is(err, ErrUnknownEntity))
	assert.Contains(t, err.Error(), "ghost_0")
}

func TestSyncStepAggregatesErrors(t *testing.T) {
	d := newDevices()
	sim := newSimulator(t, d)
	_, err := sim.Init("sim-0", 1, 1, false)
	require.NoError(t, err)
	_, err = sim.Create(1, "loop", "good", 502)
	require.NoError(t, err)
	_, err = sim.Create(1, "loop", "bad", 502)
	require.NoError(t, err)
	d.get("good", 502).SetHolding(1, 4)
	d.get("bad", 502).SetFailIO(true)

	inputs := Inputs{
		"loop_good_502_0": {"setpoint": {"src": 1}},
		"loop_bad_502_1":  {"setpoint": {"src": 1}},
	}
	next, err := sim.Step(10, inputs, 0)
	assert.Equal(t, int64(11), next)
	require.Error(t, err)
	assert.True(t, errors.Is(err, constant.ErrIO))
	assert.Contains(t, err.Error(), "loop_bad_502_1")
	assert.NotContains(t, err.Error(), "loop_good_502_0")

	data, err := sim.GetData(Outputs{"loop_good_502_0": {"measured"}, "loop_bad_502_1": nil})
	require.NoError(t, err)
	assert.Equal(t, int64(4), data["loop_good_502_0"]["measured"])
	assert.Empty(t, data["loop_bad_502_1"])

	st := sim.Stats()
	assert.Equal(t, int64(2), st.Cycles)
	assert.Equal(t, int64(1), st.CycleErrors)
}

func TestSyncStepMissingInput(t *testing.T) {
	sim := newSimulator(t, newDevices())
	_, err := sim.Init("sim-0", 1, 1, false)
	require.NoError(t, err)
	_, err = sim.Create(1, "loop", "dev", 502)
	require.NoError(t, err)

	_, err = sim.Step(0, nil, 0)
	assert.True(t, errors.Is(err, constant.ErrMissingVariable))

	_, err = sim.Step(0, input("loop_dev_502_0", "setpoint", "high"), 0)
	assert.True(t, errors.Is(err, constant.ErrEncoding))
}

func TestAsyncStepIsOneStepBehind(t *testing.T) {
	d := newDevices()
	sim := newSimulator(t, d)
	_, err := sim.Init("sim-0", 1, 1, true)
	require.NoError(t, err)
	defer sim.Finalize()
	_, err = sim.Create(1, "loop", "dev", 502)
	require.NoError(t, err)
	eid := "loop_dev_502_0"
	dev := d.get("dev", 502)
	dev.SetHolding(1, 7)

	_, err = sim.Step(0, input(eid, "setpoint", 1), 0)
	require.NoError(t, err)
	data, err := sim.GetData(Outputs{eid: nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"measured": int64(0), "doubled": 0.0}, data[eid])

	_, err = sim.Step(1, input(eid, "setpoint", 2), 0)
	require.NoError(t, err)
	data, err = sim.GetData(Outputs{eid: nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"measured": int64(7), "doubled": 14.0}, data[eid])
}

func TestAsyncStepDoesNotWaitForDevice(t *testing.T) {
	d := newDevices()
	sim := newSimulator(t, d)
	_, err := sim.Init("sim-0", 1, 1, true)
	require.NoError(t, err)
	_, err = sim.Create(1, "loop", "slow", 502)
	require.NoError(t, err)
	eid := "loop_slow_502_0"

	release := make(chan struct{})
	reading := make(chan struct{}, 4)
	dev := d.get("slow", 502)
	dev.OnRead = func() {
		reading <- struct{}{}
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := sim.Step(0, input(eid, "setpoint", 1), 0)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("step blocked on the device")
	}
	select {
	case <-reading:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle was not started in the background")
	}

	close(release)
	_, err = sim.Step(1, input(eid, "setpoint", 1), 0)
	require.NoError(t, err)
	require.NoError(t, sim.Finalize())
}

func TestAsyncErrorReraisedOnNextStep(t *testing.T) {
	d := newDevices()
	sim := newSimulator(t, d)
	_, err := sim.Init("sim-0", 1, 1, true)
	require.NoError(t, err)
	defer sim.Finalize()
	_, err = sim.Create(1, "loop", "dev", 502)
	require.NoError(t, err)
	eid := "loop_dev_502_0"
	d.get("dev", 502).SetFailIO(true)

	_, err = sim.Step(0, input(eid, "setpoint", 1), 0)
	require.NoError(t, err)

	_, err = sim.Step(1, input(eid, "setpoint", 1), 0)
	assert.True(t, errors.Is(err, constant.ErrIO))

	// the cycle queued by step 1 may still see the failure
	d.get("dev", 502).SetFailIO(false)
	_, _ = sim.Step(2, input(eid, "setpoint", 1), 0)
	_, err = sim.Step(3, input(eid, "setpoint", 1), 0)
	assert.NoError(t, err)
}

func TestFinalizeClosesDevices(t *testing.T) {
	d := newDevices()
	sim := newSimulator(t, d)
	_, err := sim.Init("sim-0", 1, 1, true)
	require.NoError(t, err)
	_, err = sim.Create(1, "loop", "dev", 502)
	require.NoError(t, err)
	_, err = sim.Step(0, input("loop_dev_502_0", "setpoint", 1), 0)
	require.NoError(t, err)

	require.NoError(t, sim.Finalize())
	assert.False(t, d.get("dev", 502).IsOpen())
	_, err = sim.GetData(Outputs{"loop_dev_502_0": nil})
	assert.True(t, errors.Is(err, ErrFinalized))
}

func TestStepTiming(t *testing.T) {
	base := time.Unix(0, 0)
	var ticks int
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks*ticks) * time.Millisecond)
	}
	sim := newSimulator(t, newDevices(), WithClock(clock))
	_, err := sim.Init("sim-0", 1, 1, false)
	require.NoError(t, err)

	for i := int64(0); i < 2; i++ {
		_, err = sim.Step(i, nil, 0)
		require.NoError(t, err)
	}
	// 4-1 then 16-9 milliseconds
	st := sim.Stats()
	assert.Equal(t, int64(2), st.Steps)
	assert.Equal(t, 7.0, st.LastStepMs)
	assert.Equal(t, 7.0, st.MaxStepMs)
	assert.Equal(t, 5.0, st.MeanStepMs)
}

func TestInitSealsRegistry(t *testing.T) {
	reg := newRegistry(t)
	sim := NewSimulator(reg, WithClientFactory(newDevices().factory()))
	t.Cleanup(func() { _ = sim.Finalize() })
	before := reg.Models()

	_, err := sim.Init("sim-0", 1, 60, true)
	require.NoError(t, err)
	_, err = sim.Create(1, "loop", "dev", 502)
	require.NoError(t, err)

	config, err := runtime.LoadModelConfig([]byte(loopModel))
	require.NoError(t, err)
	err = reg.RegisterConfig("late", config)
	assert.True(t, errors.Is(err, constant.ErrRegistrySealed), "%v", err)
	assert.Equal(t, before, reg.Models())
	assert.NotContains(t, sim.Meta().Models, "late")
}
