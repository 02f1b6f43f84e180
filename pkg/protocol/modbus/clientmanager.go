package modbus

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	modbus "modbushil/pkg/protocol/modbus/runtime"
	"modbushil/pkg/runtime"
	"modbushil/pkg/runtime/constant"
	"modbushil/pkg/utils/binutil"
)

type wordBlock struct {
	Range runtime.RegisterRange
	Data  []uint16
}

type discreteBlock struct {
	Range runtime.RegisterRange
	Data  []bool
}

// ClientManager buffers the configured IO bundles of one device. Reads land in
// the read blocks, writes are staged in the write blocks until DoWrite.
type ClientManager struct {
	client modbus.Client

	readWords      []*wordBlock
	readDiscretes  []*discreteBlock
	writeWords     []*wordBlock
	writeDiscretes []*discreteBlock
}

func NewClientManager(client modbus.Client, bundles *runtime.IOBundles) *ClientManager {
	m := &ClientManager{client: client}
	for _, rt := range constant.RegisterTypes {
		for _, r := range bundles.ReadRanges[rt] {
			if rt.IsDiscrete() {
				m.readDiscretes = append(m.readDiscretes, &discreteBlock{Range: r, Data: make([]bool, r.Length)})
			} else {
				m.readWords = append(m.readWords, &wordBlock{Range: r, Data: make([]uint16, r.Length)})
			}
		}
		for _, r := range bundles.WriteRanges[rt] {
			if rt.IsDiscrete() {
				m.writeDiscretes = append(m.writeDiscretes, &discreteBlock{Range: r, Data: make([]bool, r.Length)})
			} else {
				m.writeWords = append(m.writeWords, &wordBlock{Range: r, Data: make([]uint16, r.Length)})
			}
		}
	}
	return m
}

func (m *ClientManager) Connect() error {
	if m.client.IsOpen() {
		return nil
	}
	if err := m.client.Open(); err != nil {
		return errors.Wrapf(constant.ErrIO, "connect: %v", err)
	}
	return nil
}

func (m *ClientManager) Disconnect() error {
	if !m.client.IsOpen() {
		return nil
	}
	if err := m.client.Close(); err != nil {
		return errors.Wrapf(constant.ErrIO, "disconnect: %v", err)
	}
	return nil
}

// DoRead refreshes every read block from the device.
func (m *ClientManager) DoRead() error {
	if err := m.Connect(); err != nil {
		return err
	}
	for _, b := range m.readWords {
		var words []uint16
		var err error
		if b.Range.Type == constant.InputRegister {
			words, err = m.client.ReadInputRegisters(b.Range.Start, b.Range.Length)
		} else {
			words, err = m.client.ReadHoldingRegisters(b.Range.Start, b.Range.Length)
		}
		if err != nil || len(words) < b.Range.Length {
			return ioError("read", b.Range, len(words), err)
		}
		copy(b.Data, words)
	}
	for _, b := range m.readDiscretes {
		var bits []bool
		var err error
		if b.Range.Type == constant.DiscreteInput {
			bits, err = m.client.ReadDiscreteInputs(b.Range.Start, b.Range.Length)
		} else {
			bits, err = m.client.ReadCoils(b.Range.Start, b.Range.Length)
		}
		if err != nil || len(bits) < b.Range.Length {
			return ioError("read", b.Range, len(bits), err)
		}
		copy(b.Data, bits)
	}
	klog.V(5).InfoS("Succeed to read modbus bundles", "words", len(m.readWords), "discretes", len(m.readDiscretes))
	return nil
}

// DoWrite pushes every write block to the device.
func (m *ClientManager) DoWrite() error {
	if err := m.Connect(); err != nil {
		return err
	}
	for _, b := range m.writeWords {
		if b.Range.Type != constant.HoldingRegister {
			return errors.Wrapf(constant.ErrAddress, "cannot write %s", b.Range)
		}
		if err := m.client.WriteMultipleRegisters(b.Range.Start, b.Data); err != nil {
			return ioError("write", b.Range, 0, err)
		}
	}
	for _, b := range m.writeDiscretes {
		if b.Range.Type != constant.Coil {
			return errors.Wrapf(constant.ErrAddress, "cannot write %s", b.Range)
		}
		if err := m.client.WriteMultipleCoils(b.Range.Start, b.Data); err != nil {
			return ioError("write", b.Range, 0, err)
		}
	}
	klog.V(5).InfoS("Succeed to write modbus bundles", "words", len(m.writeWords), "discretes", len(m.writeDiscretes))
	return nil
}

func ioError(op string, r runtime.RegisterRange, got int, err error) error {
	if err != nil {
		return errors.Wrapf(constant.ErrIO, "%s %s %s: %v", op, r.Type, r, err)
	}
	return errors.Wrapf(constant.ErrIO, "%s %s %s: got %d of %d values", op, r.Type, r, got, r.Length)
}

func findWords(blocks []*wordBlock, start uint16, n int, rt constant.RegisterType) (*wordBlock, int, error) {
	if rt.IsDiscrete() {
		return nil, 0, errors.Wrapf(constant.ErrAddress, "%s does not hold words", rt)
	}
	want := runtime.NewRegisterRange(rt, start, n)
	for _, b := range blocks {
		if b.Range.Contains(want) {
			return b, int(start - b.Range.Start), nil
		}
	}
	return nil, 0, errors.Wrapf(constant.ErrAddress, "%s is not buffered", want)
}

func findDiscretes(blocks []*discreteBlock, start uint16, n int, rt constant.RegisterType) (*discreteBlock, int, error) {
	if !rt.IsDiscrete() {
		return nil, 0, errors.Wrapf(constant.ErrAddress, "%s does not hold discretes", rt)
	}
	want := runtime.NewRegisterRange(rt, start, n)
	for _, b := range blocks {
		if b.Range.Contains(want) {
			return b, int(start - b.Range.Start), nil
		}
	}
	return nil, 0, errors.Wrapf(constant.ErrAddress, "%s is not buffered", want)
}

// GetRegisters returns a copy of n read words starting at start.
func (m *ClientManager) GetRegisters(start uint16, n int, rt constant.RegisterType) ([]uint16, error) {
	b, offset, err := findWords(m.readWords, start, n, rt)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	copy(out, b.Data[offset:offset+n])
	return out, nil
}

// SetRegisters stages holding register values for the next DoWrite.
func (m *ClientManager) SetRegisters(start uint16, values []uint16, rt constant.RegisterType) error {
	if rt != constant.HoldingRegister {
		return errors.Wrapf(constant.ErrAddress, "%s cannot be written", rt)
	}
	b, offset, err := findWords(m.writeWords, start, len(values), rt)
	if err != nil {
		return err
	}
	copy(b.Data[offset:], values)
	return nil
}

func (m *ClientManager) GetDiscretes(start uint16, n int, rt constant.RegisterType) ([]bool, error) {
	b, offset, err := findDiscretes(m.readDiscretes, start, n, rt)
	if err != nil {
		return nil, err
	}
	out := make([]bool, n)
	copy(out, b.Data[offset:offset+n])
	return out, nil
}

func (m *ClientManager) SetDiscretes(start uint16, values []bool, rt constant.RegisterType) error {
	if rt != constant.Coil {
		return errors.Wrapf(constant.ErrAddress, "%s cannot be written", rt)
	}
	b, offset, err := findDiscretes(m.writeDiscretes, start, len(values), rt)
	if err != nil {
		return err
	}
	copy(b.Data[offset:], values)
	return nil
}

func (m *ClientManager) GetInt(r runtime.RegisterRange) (int64, error) {
	regs, err := m.GetRegisters(r.Start, r.Length, r.Type)
	if err != nil {
		return 0, err
	}
	return binutil.RegisterToInt(regs)
}

func (m *ClientManager) GetUint(r runtime.RegisterRange) (uint64, error) {
	regs, err := m.GetRegisters(r.Start, r.Length, r.Type)
	if err != nil {
		return 0, err
	}
	return binutil.RegisterToUint(regs)
}

func (m *ClientManager) GetFloat(r runtime.RegisterRange) (float64, error) {
	regs, err := m.GetRegisters(r.Start, r.Length, r.Type)
	if err != nil {
		return 0, err
	}
	return binutil.RegisterToFloat(regs)
}

// GetBool reads a discrete, or a word register as word != 0.
func (m *ClientManager) GetBool(r runtime.RegisterRange) (bool, error) {
	if r.Type.IsDiscrete() {
		bits, err := m.GetDiscretes(r.Start, 1, r.Type)
		if err != nil {
			return false, err
		}
		return bits[0], nil
	}
	regs, err := m.GetRegisters(r.Start, 1, r.Type)
	if err != nil {
		return false, err
	}
	return regs[0] != 0, nil
}

func (m *ClientManager) SetInt(r runtime.RegisterRange, v int64) error {
	regs, err := binutil.IntToRegister(v, r.Length)
	if err != nil {
		return err
	}
	return m.SetRegisters(r.Start, regs, r.Type)
}

func (m *ClientManager) SetUint(r runtime.RegisterRange, v uint64) error {
	regs, err := binutil.UintToRegister(v, r.Length)
	if err != nil {
		return err
	}
	return m.SetRegisters(r.Start, regs, r.Type)
}

func (m *ClientManager) SetFloat(r runtime.RegisterRange, v float64) error {
	regs, err := binutil.FloatToRegister(v, r.Length)
	if err != nil {
		return err
	}
	return m.SetRegisters(r.Start, regs, r.Type)
}

func (m *ClientManager) SetBool(r runtime.RegisterRange, v bool) error {
	if r.Type.IsDiscrete() {
		return m.SetDiscretes(r.Start, []bool{v}, r.Type)
	}
	var word uint16
	if v {
		word = 1
	}
	return m.SetRegisters(r.Start, []uint16{word}, r.Type)
}
