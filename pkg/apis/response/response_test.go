package response

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ErrDeviceIO(cause)
	assert.Equal(t, "10007: Modbus device communication failed: connection refused", err.Error())
	assert.Equal(t, ErrCodeDeviceIO, err.GetCode())
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsResponseError(err))
	assert.False(t, IsResponseError(cause))
}

func TestMultiErrorJSON(t *testing.T) {
	multi := NewMultiError(ErrMalformedJSON)
	multi.Add(ErrResourceNotFound(stderrors.New("entity ghost")))
	assert.Equal(t, 2, multi.Len())

	data, err := json.Marshal(multi)
	require.NoError(t, err)
	assert.JSONEq(t, `{"errors":[
		{"code":10001,"message":"The JSON you provided was not well-formed or did not validate against our published format."},
		{"code":10004,"message":"Resource not found: entity ghost"}]}`, string(data))

	decoded := NewMultiError()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, []ErrCode{ErrCodeMalformedJSON, ErrCodeResourceNotFound}, decoded.Codes())
	assert.Equal(t, multi.Error(), decoded.Error())
}

func TestNilMultiError(t *testing.T) {
	var multi *MultiError
	assert.Equal(t, 0, multi.Len())
}
