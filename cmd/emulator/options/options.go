package options

import (
	"net"
	"strconv"

	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/klog/v2"

	"modbushil/pkg/emulator"
	baseoptions "modbushil/pkg/generic/options"
)

const (
	EnvHost = "HOST"
	EnvPort = "PORT"

	_defaultHost = "127.0.0.1"
	_defaultPort = 5020
)

type Options struct {
	Host    string          `json:"host"`
	Port    int             `json:"port"`
	Battery emulator.Config `json:"battery"`
	baseoptions.BaseOptions
}

// NewDefaultOptions takes HOST and PORT from the environment or the .env file
// before falling back to the built-in defaults.
func NewDefaultOptions() *Options {
	if err := baseoptions.LoadEnv(baseoptions.DefaultEnvFile); err != nil {
		klog.V(2).InfoS("Failed to load env file", "file", baseoptions.DefaultEnvFile, "err", err)
	}
	port, err := strconv.Atoi(baseoptions.EnvOr(EnvPort, strconv.Itoa(_defaultPort)))
	if err != nil {
		port = _defaultPort
	}
	return &Options{
		Host:        baseoptions.EnvOr(EnvHost, _defaultHost),
		Port:        port,
		Battery:     emulator.DefaultConfig(),
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Host, "host", o.Host, "Address the Modbus TCP server listens on, defaults to $HOST")
	fs.IntVarP(&o.Port, "port", "P", o.Port, "Port the Modbus TCP server listens on, defaults to $PORT")
	fs.DurationVar(&o.Battery.Step, "step", o.Battery.Step, "Physics period of the battery")
	fs.Float64Var(&o.Battery.CapacityWh, "capacity-wh", o.Battery.CapacityWh, "Battery capacity in Wh")
	fs.Float64Var(&o.Battery.GenMaxW, "gen-max-w", o.Battery.GenMaxW, "Maximum charging power in W")
	fs.Float64Var(&o.Battery.LoadMaxW, "load-max-w", o.Battery.LoadMaxW, "Maximum discharging power in W")
}

func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}
	if allErrs := validateOptions(o); len(allErrs) > 0 {
		errs = append(errs, allErrs.ToAggregate().Errors()...)
	}
	if err := o.Battery.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func validateOptions(o *Options) field.ErrorList {
	allErrs := field.ErrorList{}
	if len(o.Host) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("host"), ""))
	}
	for _, msg := range validation.IsValidPortNum(o.Port) {
		allErrs = append(allErrs, field.Invalid(field.NewPath("port"), o.Port, msg))
	}
	return allErrs
}
