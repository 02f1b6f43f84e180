package constant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type RegisterType int8

const (
	// NoRegisterType marks an absent type override.
	NoRegisterType RegisterType = iota
	Coil
	DiscreteInput
	HoldingRegister
	InputRegister
)

// RegisterTypes lists every register type in buffer allocation order.
var RegisterTypes = []RegisterType{Coil, DiscreteInput, HoldingRegister, InputRegister}

var RegisterTypeToString = map[RegisterType]string{
	Coil:            "COIL",
	DiscreteInput:   "DISCRETE_INPUT",
	HoldingRegister: "HOLDING_REGISTER",
	InputRegister:   "INPUT_REGISTER",
}

var RegisterTypeToLetter = map[RegisterType]string{
	Coil:            "C",
	DiscreteInput:   "D",
	HoldingRegister: "H",
	InputRegister:   "I",
}

var StringToRegisterType = map[string]RegisterType{
	"COIL":             Coil,
	"C":                Coil,
	"DISCRETE_INPUT":   DiscreteInput,
	"D":                DiscreteInput,
	"HOLDING_REGISTER": HoldingRegister,
	"H":                HoldingRegister,
	"INPUT_REGISTER":   InputRegister,
	"I":                InputRegister,
}

func ParseRegisterType(s string) (RegisterType, error) {
	rt, ok := StringToRegisterType[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return NoRegisterType, errors.Wrapf(ErrConfig, "invalid modbus register type %q", s)
	}
	return rt, nil
}

func (rt RegisterType) String() string {
	if s, ok := RegisterTypeToString[rt]; ok {
		return s
	}
	return fmt.Sprintf("RegisterType(%d)", rt)
}

// IsDiscrete reports whether the type carries booleans instead of words.
func (rt RegisterType) IsDiscrete() bool {
	return rt == Coil || rt == DiscreteInput
}

// Writable reports whether a master may write the type.
func (rt RegisterType) Writable() bool {
	return rt == Coil || rt == HoldingRegister
}

func (rt RegisterType) MarshalJSON() ([]byte, error) {
	if s, ok := RegisterTypeToString[rt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown register type %d", rt)
}

func (rt *RegisterType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}
	v, err := ParseRegisterType(s)
	if err != nil {
		return err
	}
	*rt = v
	return nil
}
