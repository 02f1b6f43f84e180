package runtime

import (
	"sort"

	"github.com/pkg/errors"

	"modbushil/pkg/runtime/constant"
)

const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

// IOBundles holds the ranges transferred in bulk on every read and write phase,
// per register type in configured order.
type IOBundles struct {
	ReadRanges  map[constant.RegisterType][]RegisterRange
	WriteRanges map[constant.RegisterType][]RegisterRange
}

func NewIOBundles(config map[string]IOBundleConfig) (*IOBundles, error) {
	b := &IOBundles{
		ReadRanges:  make(map[constant.RegisterType][]RegisterRange),
		WriteRanges: make(map[constant.RegisterType][]RegisterRange),
	}

	// sorted so the first offending entry is stable
	directions := make([]string, 0, len(config))
	for d := range config {
		directions = append(directions, d)
	}
	sort.Strings(directions)

	for _, direction := range directions {
		if direction != DirectionRead && direction != DirectionWrite {
			return nil, errors.Wrapf(constant.ErrConfig, "Invalid IO config direction: %s", direction)
		}
		regs := config[direction]
		names := make([]string, 0, len(regs))
		for n := range regs {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, name := range names {
			rt, err := constant.ParseRegisterType(name)
			if err != nil {
				return nil, err
			}
			if direction == DirectionWrite && !rt.Writable() {
				return nil, errors.Wrapf(constant.ErrConfig, "register type %s cannot be written", rt)
			}
			for _, s := range regs[name] {
				r, err := ParseRegisterRange(s, rt)
				if err != nil {
					return nil, err
				}
				if direction == DirectionRead {
					b.ReadRanges[rt] = append(b.ReadRanges[rt], r)
				} else {
					b.WriteRanges[rt] = append(b.WriteRanges[rt], r)
				}
			}
		}
	}
	return b, nil
}

func (b *IOBundles) HasReadRange(r RegisterRange) bool {
	return containedIn(b.ReadRanges[r.Type], r)
}

func (b *IOBundles) HasWriteRange(r RegisterRange) bool {
	return containedIn(b.WriteRanges[r.Type], r)
}

func containedIn(ranges []RegisterRange, r RegisterRange) bool {
	for _, existing := range ranges {
		if existing.Contains(r) {
			return true
		}
	}
	return false
}
