// Package modbustest provides an in-memory Modbus device for tests.
package modbustest

import (
	"errors"
	"sync"

	modbus "modbushil/pkg/protocol/modbus/runtime"
)

var ErrInjected = errors.New("injected failure")

var _ modbus.Client = (*Client)(nil)

type Call struct {
	Op     string
	Start  uint16
	Count  int
	Words  []uint16
	Values []bool
}

// Client serves reads and writes from four address spaces of 65536 entries.
// Writes to coils and holding registers become visible to later reads.
type Client struct {
	mux sync.Mutex

	Coils     map[uint16]bool
	Discretes map[uint16]bool
	Holding   map[uint16]uint16
	Input     map[uint16]uint16

	Calls     []Call
	Opens     int
	Connected bool

	// FailOpen and FailIO make the next calls fail until cleared.
	FailOpen bool
	FailIO   bool
	// Short truncates read results by one value.
	Short bool
	// OnRead runs at the start of every read, outside the lock.
	OnRead func()
}

func NewClient() *Client {
	return &Client{
		Coils:     map[uint16]bool{},
		Discretes: map[uint16]bool{},
		Holding:   map[uint16]uint16{},
		Input:     map[uint16]uint16{},
	}
}

// Factory returns a ClientFactory handing out c for every endpoint.
func (c *Client) Factory() modbus.ClientFactory {
	return func(host string, port int) modbus.Client { return c }
}

func (c *Client) Open() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.Opens++
	if c.FailOpen {
		return ErrInjected
	}
	c.Connected = true
	return nil
}

func (c *Client) Close() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.Connected = false
	return nil
}

func (c *Client) IsOpen() bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.Connected
}

func (c *Client) SetFailIO(fail bool) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.FailIO = fail
}

func (c *Client) SetHolding(start uint16, words ...uint16) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for i, w := range words {
		c.Holding[start+uint16(i)] = w
	}
}

func (c *Client) HoldingWords(start uint16, n int) []uint16 {
	c.mux.Lock()
	defer c.mux.Unlock()
	out := make([]uint16, n)
	for i := range out {
		out[i] = c.Holding[start+uint16(i)]
	}
	return out
}

func (c *Client) CallsOf(op string) []Call {
	c.mux.Lock()
	defer c.mux.Unlock()
	var out []Call
	for _, call := range c.Calls {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

func (c *Client) readWords(op string, space map[uint16]uint16, start uint16, count int) ([]uint16, error) {
	if c.OnRead != nil {
		c.OnRead()
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	c.Calls = append(c.Calls, Call{Op: op, Start: start, Count: count})
	if c.FailIO {
		return nil, ErrInjected
	}
	n := count
	if c.Short {
		n--
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = space[start+uint16(i)]
	}
	return out, nil
}

func (c *Client) readBits(op string, space map[uint16]bool, start uint16, count int) ([]bool, error) {
	if c.OnRead != nil {
		c.OnRead()
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	c.Calls = append(c.Calls, Call{Op: op, Start: start, Count: count})
	if c.FailIO {
		return nil, ErrInjected
	}
	n := count
	if c.Short {
		n--
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = space[start+uint16(i)]
	}
	return out, nil
}

func (c *Client) ReadCoils(start uint16, count int) ([]bool, error) {
	return c.readBits("ReadCoils", c.Coils, start, count)
}

func (c *Client) ReadDiscreteInputs(start uint16, count int) ([]bool, error) {
	return c.readBits("ReadDiscreteInputs", c.Discretes, start, count)
}

func (c *Client) ReadHoldingRegisters(start uint16, count int) ([]uint16, error) {
	return c.readWords("ReadHoldingRegisters", c.Holding, start, count)
}

func (c *Client) ReadInputRegisters(start uint16, count int) ([]uint16, error) {
	return c.readWords("ReadInputRegisters", c.Input, start, count)
}

func (c *Client) WriteMultipleCoils(start uint16, values []bool) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.Calls = append(c.Calls, Call{Op: "WriteMultipleCoils", Start: start, Count: len(values), Values: append([]bool(nil), values...)})
	if c.FailIO {
		return ErrInjected
	}
	for i, v := range values {
		c.Coils[start+uint16(i)] = v
	}
	return nil
}

func (c *Client) WriteMultipleRegisters(start uint16, values []uint16) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.Calls = append(c.Calls, Call{Op: "WriteMultipleRegisters", Start: start, Count: len(values), Words: append([]uint16(nil), values...)})
	if c.FailIO {
		return ErrInjected
	}
	for i, v := range values {
		c.Holding[start+uint16(i)] = v
	}
	return nil
}
