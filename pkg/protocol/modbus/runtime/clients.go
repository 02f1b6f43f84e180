package runtime

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"modbushil/pkg/utils/binutil"
)

// Client is the raw Modbus access used by the client manager.
type Client interface {
	Open() error
	Close() error
	IsOpen() bool
	ReadCoils(start uint16, count int) ([]bool, error)
	ReadDiscreteInputs(start uint16, count int) ([]bool, error)
	ReadHoldingRegisters(start uint16, count int) ([]uint16, error)
	ReadInputRegisters(start uint16, count int) ([]uint16, error)
	WriteMultipleCoils(start uint16, values []bool) error
	WriteMultipleRegisters(start uint16, values []uint16) error
}

// ClientFactory creates the client for one device endpoint.
type ClientFactory func(host string, port int) Client

type TCPClientOptions struct {
	Timeout     time.Duration
	IdleTimeout time.Duration
	SlaveID     byte
}

var _ Client = (*TCPClient)(nil)

// TCPClient is a Modbus TCP master. Requests larger than the protocol allows
// are split.
type TCPClient struct {
	Address string
	Options TCPClientOptions

	mux     sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

func NewTCPClient(address string, options TCPClientOptions) *TCPClient {
	return &TCPClient{Address: address, Options: options}
}

// TCPClientFactory dials host:port with the same options for every device.
func TCPClientFactory(options TCPClientOptions) ClientFactory {
	return func(host string, port int) Client {
		return NewTCPClient(net.JoinHostPort(host, strconv.Itoa(port)), options)
	}
}

func (c *TCPClient) Open() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.handler != nil {
		return nil
	}
	h := modbus.NewTCPClientHandler(c.Address)
	h.Timeout = c.Options.Timeout
	h.IdleTimeout = c.Options.IdleTimeout
	h.SlaveId = c.Options.SlaveID
	if klog.V(6).Enabled() {
		h.Logger = klog.NewStandardLogger("INFO")
	}
	if err := h.Connect(); err != nil {
		klog.V(2).InfoS("Failed to connect modbus device", "address", c.Address, "err", err)
		return err
	}
	c.handler = h
	c.client = modbus.NewClient(h)
	klog.V(3).InfoS("Succeed to connect modbus device", "address", c.Address)
	return nil
}

func (c *TCPClient) Close() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.handler == nil {
		return nil
	}
	err := c.handler.Close()
	c.handler = nil
	c.client = nil
	return err
}

func (c *TCPClient) IsOpen() bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.handler != nil
}

func (c *TCPClient) ReadCoils(start uint16, count int) ([]bool, error) {
	return c.readBits(ReadCoilStatus, start, count)
}

func (c *TCPClient) ReadDiscreteInputs(start uint16, count int) ([]bool, error) {
	return c.readBits(ReadInputStatus, start, count)
}

func (c *TCPClient) ReadHoldingRegisters(start uint16, count int) ([]uint16, error) {
	return c.readWords(ReadHoldRegister, start, count)
}

func (c *TCPClient) ReadInputRegisters(start uint16, count int) ([]uint16, error) {
	return c.readWords(ReadInputRegister, start, count)
}

func (c *TCPClient) readBits(code FunctionCode, start uint16, count int) ([]bool, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.client == nil {
		return nil, ErrClientClosed
	}
	read := c.client.ReadCoils
	if code == ReadInputStatus {
		read = c.client.ReadDiscreteInputs
	}
	out := make([]bool, 0, count)
	err := chunk(start, count, PerRequestMaxCoil, func(address uint16, quantity int) error {
		buf, err := read(address, uint16(quantity))
		if err != nil {
			return err
		}
		bits := binutil.UnpackBools(buf, quantity)
		if len(bits) < quantity {
			return errors.Wrapf(ErrShortResponse, "function %d at %d: %d of %d", code, address, len(bits), quantity)
		}
		out = append(out, bits...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TCPClient) readWords(code FunctionCode, start uint16, count int) ([]uint16, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.client == nil {
		return nil, ErrClientClosed
	}
	read := c.client.ReadHoldingRegisters
	if code == ReadInputRegister {
		read = c.client.ReadInputRegisters
	}
	out := make([]uint16, 0, count)
	err := chunk(start, count, PerRequestMaxRegister, func(address uint16, quantity int) error {
		buf, err := read(address, uint16(quantity))
		if err != nil {
			return err
		}
		words := binutil.BytesToWords(buf)
		if len(words) < quantity {
			return errors.Wrapf(ErrShortResponse, "function %d at %d: %d of %d", code, address, len(words), quantity)
		}
		out = append(out, words[:quantity]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TCPClient) WriteMultipleCoils(start uint16, values []bool) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.client == nil {
		return ErrClientClosed
	}
	return chunk(start, len(values), PerRequestMaxWriteCoil, func(address uint16, quantity int) error {
		offset := int(address - start)
		_, err := c.client.WriteMultipleCoils(address, uint16(quantity), binutil.PackBools(values[offset:offset+quantity]))
		return err
	})
}

func (c *TCPClient) WriteMultipleRegisters(start uint16, values []uint16) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.client == nil {
		return ErrClientClosed
	}
	return chunk(start, len(values), PerRequestMaxWriteRegister, func(address uint16, quantity int) error {
		offset := int(address - start)
		_, err := c.client.WriteMultipleRegisters(address, uint16(quantity), binutil.WordsToBytes(values[offset:offset+quantity]))
		return err
	})
}

// chunk calls fn for consecutive windows of at most max items.
func chunk(start uint16, count, max int, fn func(address uint16, quantity int) error) error {
	for offset := 0; offset < count; offset += max {
		quantity := count - offset
		if quantity > max {
			quantity = max
		}
		if err := fn(uint16(int(start)+offset), quantity); err != nil {
			return err
		}
	}
	return nil
}
