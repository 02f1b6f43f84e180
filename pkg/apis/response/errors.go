package response

var errors = map[ErrCode]string{
	ErrCodeMalformedJSON:    "The JSON you provided was not well-formed or did not validate against our published format.",
	ErrCodeRequestBody:      "Request body error: %s",
	ErrCodeResourceExists:   "Resource already exists: %s",
	ErrCodeResourceNotFound: "Resource not found: %s",
	ErrCodeInvalidConfig:    "Invalid configuration: %s",
	ErrCodeSimulatorState:   "Simulator state does not allow the operation: %s",
	ErrCodeDeviceIO:         "Modbus device communication failed: %s",
	ErrCodeInternal:         "Internal error: %s",
}

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: errors[ErrCodeMalformedJSON],
}

func ErrRequestBody(err error) *responseError {
	return generateErrorWrapper(ErrCodeRequestBody, err, err.Error())
}

func ErrResourceExists(err error) *responseError {
	return generateErrorWrapper(ErrCodeResourceExists, err, err.Error())
}

func ErrResourceNotFound(err error) *responseError {
	return generateErrorWrapper(ErrCodeResourceNotFound, err, err.Error())
}

func ErrInvalidConfig(err error) *responseError {
	return generateErrorWrapper(ErrCodeInvalidConfig, err, err.Error())
}

func ErrSimulatorState(err error) *responseError {
	return generateErrorWrapper(ErrCodeSimulatorState, err, err.Error())
}

func ErrDeviceIO(err error) *responseError {
	return generateErrorWrapper(ErrCodeDeviceIO, err, err.Error())
}

func ErrInternal(err error) *responseError {
	return generateErrorWrapper(ErrCodeInternal, err, err.Error())
}
