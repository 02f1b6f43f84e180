package constant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type DataType int8

const (
	UINT16 DataType = iota
	INT16
	UINT32
	INT32
	UINT64
	INT64
	FLOAT32
	FLOAT64
	BOOL
)

var DataTypeToString = map[DataType]string{
	UINT16:  "uint16",
	INT16:   "int16",
	UINT32:  "uint32",
	INT32:   "int32",
	UINT64:  "uint64",
	INT64:   "int64",
	FLOAT32: "float32",
	FLOAT64: "float64",
	BOOL:    "bool",
}

// StringToDataType also carries the short aliases accepted in model files.
var StringToDataType = map[string]DataType{
	"uint16":  UINT16,
	"ushort":  UINT16,
	"int16":   INT16,
	"short":   INT16,
	"uint32":  UINT32,
	"uint":    UINT32,
	"int32":   INT32,
	"int":     INT32,
	"uint64":  UINT64,
	"ulong":   UINT64,
	"int64":   INT64,
	"long":    INT64,
	"float32": FLOAT32,
	"float":   FLOAT32,
	"float64": FLOAT64,
	"double":  FLOAT64,
	"bool":    BOOL,
	"boolean": BOOL,
}

// DataTypeWord is the number of 16-bit registers a value occupies. A bool
// occupies one discrete value, or one word on a word register.
var DataTypeWord = map[DataType]uint{
	UINT16:  1,
	INT16:   1,
	UINT32:  2,
	INT32:   2,
	UINT64:  4,
	INT64:   4,
	FLOAT32: 2,
	FLOAT64: 4,
	BOOL:    1,
}

func ParseDataType(s string) (DataType, error) {
	dt, ok := StringToDataType[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, errors.Wrapf(ErrConfig, "invalid data type %q", s)
	}
	return dt, nil
}

func (dt DataType) String() string {
	if s, ok := DataTypeToString[dt]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", dt)
}

func (dt DataType) Words() uint {
	return DataTypeWord[dt]
}

func (dt DataType) IsSigned() bool {
	switch dt {
	case INT16, INT32, INT64:
		return true
	}
	return false
}

func (dt DataType) IsUnsigned() bool {
	switch dt {
	case UINT16, UINT32, UINT64:
		return true
	}
	return false
}

func (dt DataType) IsInteger() bool {
	return dt.IsSigned() || dt.IsUnsigned()
}

func (dt DataType) IsFloat() bool {
	return dt == FLOAT32 || dt == FLOAT64
}

func (dt DataType) MarshalJSON() ([]byte, error) {
	if s, ok := DataTypeToString[dt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown data type %d", dt)
}

func (dt *DataType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*dt = v
	return nil
}
