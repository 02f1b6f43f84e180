package constant

import "errors"

var (
	ErrConfig          = errors.New("invalid configuration")
	ErrValidation      = errors.New("invalid integration settings")
	ErrUnknownModel    = errors.New("unknown model")
	ErrModelRegistered = errors.New("model already registered")
	ErrRegistrySealed  = errors.New("registry is sealed")
	ErrAddress         = errors.New("register address not buffered")
	ErrMissingVariable = errors.New("missing variable")
	ErrIO              = errors.New("modbus io failure")
	ErrEncoding        = errors.New("unsupported register encoding")
)
