package options

import (
	"strconv"

	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}
	if allErrs := validateOptions(o); len(allErrs) > 0 {
		errs = append(errs, allErrs.ToAggregate().Errors()...)
	}
	return errs
}

func validateOptions(o *Options) field.ErrorList {
	allErrs := field.ErrorList{}
	port, err := strconv.Atoi(o.Port)
	if err != nil {
		allErrs = append(allErrs, field.Invalid(field.NewPath("port"), o.Port, "must be a number"))
	} else {
		for _, msg := range validation.IsValidPortNum(port) {
			allErrs = append(allErrs, field.Invalid(field.NewPath("port"), o.Port, msg))
		}
	}
	if o.Wait <= 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("graceful-timeout"), o.Wait.String(), "must be positive"))
	}
	if len(o.ModelDir) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("model-dir"), ""))
	}
	if (len(o.CertFile) == 0) != (len(o.KeyFile) == 0) {
		allErrs = append(allErrs, field.Invalid(field.NewPath("tls-private-key-file"), o.KeyFile, "certificate and key must be set together"))
	}

	modbusPath := field.NewPath("modbus")
	if o.Modbus.Timeout <= 0 {
		allErrs = append(allErrs, field.Invalid(modbusPath.Child("timeout"), o.Modbus.Timeout.String(), "must be positive"))
	}
	if o.Modbus.IdleTimeout < 0 {
		allErrs = append(allErrs, field.Invalid(modbusPath.Child("idle-timeout"), o.Modbus.IdleTimeout.String(), "must not be negative"))
	}

	mqttPath := field.NewPath("mqtt")
	if o.MQTT.QoS > 2 {
		allErrs = append(allErrs, field.NotSupported(mqttPath.Child("qos"), o.MQTT.QoS, []string{"0", "1", "2"}))
	}
	if len(o.MQTT.Broker) > 0 && len(o.MQTT.ClientID) == 0 {
		allErrs = append(allErrs, field.Required(mqttPath.Child("client-id"), "required when a broker is configured"))
	}
	return allErrs
}
