package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"modbushil/pkg/runtime/constant"
)

// MaxAddress is the highest addressable register.
const MaxAddress = 0xFFFF

// RegisterRange is a contiguous run of registers of one type.
type RegisterRange struct {
	Type   constant.RegisterType `json:"type"`
	Start  uint16                `json:"start"`
	Length int                   `json:"length"`
}

func NewRegisterRange(rt constant.RegisterType, start uint16, length int) RegisterRange {
	return RegisterRange{Type: rt, Start: start, Length: length}
}

// End is the first address after the range.
func (r RegisterRange) End() int {
	return int(r.Start) + r.Length
}

// Contains reports whether other has the same type and lies within r.
func (r RegisterRange) Contains(other RegisterRange) bool {
	if r.Type != other.Type {
		return false
	}
	return r.Start <= other.Start && r.End() >= other.End()
}

// String uses the range grammar understood by ParseRegisterRange, e.g. H2-4.
func (r RegisterRange) String() string {
	letter := constant.RegisterTypeToLetter[r.Type]
	if r.Length == 1 {
		return fmt.Sprintf("%s%d", letter, r.Start)
	}
	return fmt.Sprintf("%s%d-%d", letter, r.Start, r.End()-1)
}

// ParseRegisterRange parses "H2-4", "C7" or, with an override, a bare "2-4".
// The override wins over a type letter in s.
func ParseRegisterRange(s string, override constant.RegisterType) (RegisterRange, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return RegisterRange{}, errors.Wrap(constant.ErrConfig, "Register range string is empty")
	}

	rt := override
	rest := s
	if c := s[0]; c < '0' || c > '9' {
		if override == constant.NoRegisterType {
			t, err := constant.ParseRegisterType(string(c))
			if err != nil {
				return RegisterRange{}, err
			}
			rt = t
		}
		rest = s[1:]
	}
	if rt == constant.NoRegisterType {
		return RegisterRange{}, errors.Wrapf(constant.ErrConfig, "Register type could not be determined: %s", s)
	}

	parts := strings.Split(rest, "-")
	if len(parts) > 2 {
		return RegisterRange{}, errors.Wrapf(constant.ErrConfig, "Invalid register range format: %s", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return RegisterRange{}, errors.Wrapf(constant.ErrConfig, "Invalid register range numbers: %s", s)
	}
	end := start
	if len(parts) == 2 {
		if end, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return RegisterRange{}, errors.Wrapf(constant.ErrConfig, "Invalid register range numbers: %s", s)
		}
	}
	if start < 0 || end > MaxAddress {
		return RegisterRange{}, errors.Wrapf(constant.ErrConfig, "Register address out of range 0-%d: %s", MaxAddress, s)
	}
	if end < start {
		return RegisterRange{}, errors.Wrapf(constant.ErrConfig, "End of register range must be >= start: %s", s)
	}
	return NewRegisterRange(rt, uint16(start), end-start+1), nil
}
