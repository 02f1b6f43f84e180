package simulator

import "errors"

const (
	APIVersion = "3.0"
	SimType    = "time-based"

	ParamHost = "host"
	ParamPort = "port"
)

var (
	ErrNotInitialized     = errors.New("simulator not initialized")
	ErrAlreadyInitialized = errors.New("simulator already initialized")
	ErrUnknownEntity      = errors.New("unknown entity")
	ErrFinalized          = errors.New("simulator finalized")
	ErrCyclePanic         = errors.New("entity cycle panicked")
)
