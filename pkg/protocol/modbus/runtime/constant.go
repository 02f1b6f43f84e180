package runtime

import "errors"

var ErrClientClosed = errors.New("modbus client not open")
var ErrShortResponse = errors.New("modbus response shorter than requested")

type FunctionCode uint8

const (
	ReadCoilStatus        FunctionCode = 1
	ReadInputStatus       FunctionCode = 2
	ReadHoldRegister      FunctionCode = 3
	ReadInputRegister     FunctionCode = 4
	WriteMultipleCoil     FunctionCode = 15
	WriteMultipleRegister FunctionCode = 16
)

// Per request protocol limits.
const (
	PerRequestMaxCoil          = 2000
	PerRequestMaxRegister      = 125
	PerRequestMaxWriteCoil     = 1968
	PerRequestMaxWriteRegister = 123
)
