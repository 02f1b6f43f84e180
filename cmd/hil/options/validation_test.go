package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateDefaults(t *testing.T) {
	assert.Empty(t, validateOptions(NewDefaultOptions()))
}

func TestValidateOptions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
		field  string
	}{
		{"port not a number", func(o *Options) { o.Port = "http" }, "port"},
		{"port out of range", func(o *Options) { o.Port = "70000" }, "port"},
		{"no wait", func(o *Options) { o.Wait = 0 }, "graceful-timeout"},
		{"no model dir", func(o *Options) { o.ModelDir = "" }, "model-dir"},
		{"cert without key", func(o *Options) { o.CertFile = "tls.crt" }, "tls-private-key-file"},
		{"no modbus timeout", func(o *Options) { o.Modbus.Timeout = 0 }, "modbus.timeout"},
		{"negative idle timeout", func(o *Options) { o.Modbus.IdleTimeout = -time.Second }, "modbus.idle-timeout"},
		{"qos", func(o *Options) { o.MQTT.QoS = 3 }, "mqtt.qos"},
		{"client id", func(o *Options) { o.MQTT.Broker = "tcp://localhost:1883"; o.MQTT.ClientID = "" }, "mqtt.client-id"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			o := NewDefaultOptions()
			c.mutate(o)
			errs := validateOptions(o)
			if assert.Len(t, errs, 1) {
				assert.Equal(t, c.field, errs[0].Field)
			}
		})
	}
}
