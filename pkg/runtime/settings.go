package runtime

import (
	"sort"

	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"modbushil/pkg/method"
	"modbushil/pkg/runtime/constant"
)

// IntegrationSettings is the validated, immutable description of one model.
type IntegrationSettings struct {
	IOBundles    *IOBundles
	Variables    map[string]*VariableMapping
	ReadMethods  []*method.Method
	WriteMethods []*method.Method

	names []string
}

// NewIntegrationSettings parses config and checks that both phases can be
// carried out. functions resolves function methods.
func NewIntegrationSettings(config *ModelConfig, functions method.FunctionTable) (*IntegrationSettings, error) {
	bundles, err := NewIOBundles(config.IOBundles)
	if err != nil {
		return nil, err
	}
	s := &IntegrationSettings{
		IOBundles: bundles,
		Variables: make(map[string]*VariableMapping, len(config.Variables)),
	}
	for name, vc := range config.Variables {
		v, err := NewVariableMapping(name, vc)
		if err != nil {
			return nil, err
		}
		s.Variables[name] = v
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)

	for _, mc := range config.Methods.Read {
		m, err := method.NewMethod(mc, functions)
		if err != nil {
			return nil, errors.Wrap(err, "read method")
		}
		s.ReadMethods = append(s.ReadMethods, m)
	}
	for _, mc := range config.Methods.Write {
		m, err := method.NewMethod(mc, functions)
		if err != nil {
			return nil, errors.Wrap(err, "write method")
		}
		s.WriteMethods = append(s.WriteMethods, m)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports every violation of the read and the write phase.
func (s *IntegrationSettings) Validate() error {
	var errs []error
	errs = append(errs, s.validateReadPhase()...)
	errs = append(errs, s.validateWritePhase()...)
	return utilerrors.NewAggregate(errs)
}

func (s *IntegrationSettings) validateReadPhase() []error {
	var errs []error
	valid := sets.NewString()
	for _, name := range s.names {
		v := s.Variables[name]
		if !v.Mapped() || !v.IOType.Readable() {
			continue
		}
		if !s.IOBundles.HasReadRange(*v.Register) {
			errs = append(errs, errors.Wrapf(constant.ErrValidation,
				"Variable '%s' is mapped to register %s which is not included in any read range.", name, v.Register))
			continue
		}
		valid.Insert(name)
	}

	for _, m := range s.ReadMethods {
		for _, req := range m.RequiredVariables() {
			if !valid.Has(req) {
				errs = append(errs, errors.Wrapf(constant.ErrValidation,
					"Read method requires variable '%s' which is not valid at this time.", req))
			}
		}
		valid.Insert(m.Output())
	}

	for _, name := range s.names {
		v := s.Variables[name]
		if v.Exposed && v.IOType.Readable() && !valid.Has(name) {
			errs = append(errs, errors.Wrapf(constant.ErrValidation,
				"Variable '%s' is marked for Mosaik but is not valid in read cycle.", name))
		}
	}
	return errs
}

func (s *IntegrationSettings) validateWritePhase() []error {
	var errs []error
	valid := sets.NewString(s.NonTriggerVariables()...)

	for _, m := range s.WriteMethods {
		for _, req := range m.RequiredVariables() {
			if !valid.Has(req) {
				errs = append(errs, errors.Wrapf(constant.ErrValidation,
					"Write method requires variable '%s' which is not valid at this time.", req))
			}
		}
		valid.Insert(m.Output())
	}

	for _, name := range s.names {
		v := s.Variables[name]
		if !v.Mapped() || !v.IOType.Writable() {
			continue
		}
		if !valid.Has(name) {
			errs = append(errs, errors.Wrapf(constant.ErrValidation,
				"Variable '%s' is marked to be written over Modbus but is not valid in write cycle.", name))
		}
		if !s.IOBundles.HasWriteRange(*v.Register) {
			errs = append(errs, errors.Wrapf(constant.ErrValidation,
				"Variable '%s' is mapped to register %s which is not included in any write range.", name, v.Register))
		}
	}
	return errs
}

// VariableNames returns all variable names in sorted order.
func (s *IntegrationSettings) VariableNames() []string {
	return append([]string(nil), s.names...)
}

func (s *IntegrationSettings) Variable(name string) (*VariableMapping, bool) {
	v, ok := s.Variables[name]
	return v, ok
}

func (s *IntegrationSettings) filter(pred func(v *VariableMapping) bool) []string {
	var out []string
	for _, name := range s.names {
		if pred(s.Variables[name]) {
			out = append(out, name)
		}
	}
	return out
}

// NonTriggerVariables are the exposed variables the host writes.
func (s *IntegrationSettings) NonTriggerVariables() []string {
	return s.filter(func(v *VariableMapping) bool { return v.Exposed && v.IOType.Writable() })
}

// PersistentVariables are the exposed variables the host reads.
func (s *IntegrationSettings) PersistentVariables() []string {
	return s.filter(func(v *VariableMapping) bool { return v.Exposed && v.IOType.Readable() })
}

func (s *IntegrationSettings) PersistentVariableDefaults() map[string]interface{} {
	out := make(map[string]interface{})
	for _, name := range s.PersistentVariables() {
		out[name] = s.Variables[name].DefaultValue()
	}
	return out
}

// ExposedVariables is the sorted union of non-trigger and persistent variables.
func (s *IntegrationSettings) ExposedVariables() []string {
	return s.filter(func(v *VariableMapping) bool { return v.Exposed })
}
