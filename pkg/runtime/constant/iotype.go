package constant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type IOType int8

const (
	Read IOType = iota
	Write
	Both
)

var IOTypeToString = map[IOType]string{
	Read:  "read",
	Write: "write",
	Both:  "both",
}

var StringToIOType = map[string]IOType{
	"read":  Read,
	"write": Write,
	"both":  Both,
}

func ParseIOType(s string) (IOType, error) {
	t, ok := StringToIOType[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, errors.Wrapf(ErrConfig, "invalid io type %q", s)
	}
	return t, nil
}

func (t IOType) String() string {
	if s, ok := IOTypeToString[t]; ok {
		return s
	}
	return fmt.Sprintf("IOType(%d)", t)
}

// Readable reports whether the variable takes part in the read phase.
func (t IOType) Readable() bool {
	return t == Read || t == Both
}

// Writable reports whether the variable takes part in the write phase.
func (t IOType) Writable() bool {
	return t == Write || t == Both
}

func (t IOType) MarshalJSON() ([]byte, error) {
	if s, ok := IOTypeToString[t]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown io type %d", t)
}

func (t *IOType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}
	v, err := ParseIOType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}
