package options

import (
	"os"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"modbushil/cmd/hil/config"
	"modbushil/pkg/broker"
	baseoptions "modbushil/pkg/generic/options"
	modbusruntime "modbushil/pkg/protocol/modbus/runtime"
	"modbushil/pkg/registry"
	"modbushil/pkg/simulator"
	"modbushil/pkg/utils/uuidutil"
)

const (
	EnvMqttUsername = "MQTT_USERNAME"
	EnvMqttPassword = "MQTT_PASSWORD"
)

type ModbusOptions struct {
	Timeout     time.Duration `json:"timeout"`
	IdleTimeout time.Duration `json:"idle-timeout"`
	SlaveID     uint8         `json:"slave-id"`
}

type Options struct {
	Port     string         `json:"port"`
	Wait     time.Duration  `json:"graceful-timeout"`
	ModelDir string         `json:"model-dir"`
	EnvFile  string         `json:"env-file"`
	CertFile string         `json:"tls-cert-file"`
	KeyFile  string         `json:"tls-private-key-file"`
	Modbus   ModbusOptions  `json:"modbus"`
	MQTT     broker.Options `json:"mqtt"`
	baseoptions.BaseOptions
}

const (
	_defaultPort          = "32200"
	_defaultWait          = 15 * time.Second
	_defaultModelDir      = "./models"
	_defaultModbusTimeout = 3 * time.Second
	_defaultMqttClientID  = "modbushil"
	_defaultMqttQoS       = 1
)

func NewDefaultOptions() *Options {
	return &Options{
		Port:     _defaultPort,
		Wait:     _defaultWait,
		ModelDir: _defaultModelDir,
		EnvFile:  baseoptions.DefaultEnvFile,
		Modbus: ModbusOptions{
			Timeout: _defaultModbusTimeout,
			SlaveID: 1,
		},
		MQTT: broker.Options{
			ClientID: uuidutil.ClientID(_defaultMqttClientID),
			QoS:      _defaultMqttQoS,
		},
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port of the simulation API")
	fs.DurationVar(&o.Wait, "graceful-timeout", o.Wait, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.ModelDir, "model-dir", o.ModelDir, "Directory with the model files (*.yaml, *.yml, *.json) registered at start")
	fs.StringVar(&o.EnvFile, "env-file", o.EnvFile, "Dotenv file loaded before start, a missing file is ignored")
	fs.StringVar(&o.CertFile, "tls-cert-file", o.CertFile, "File containing the x509 certificate for HTTPS, HTTP is served when empty")
	fs.StringVar(&o.KeyFile, "tls-private-key-file", o.KeyFile, "File containing the x509 private key matching --tls-cert-file")
	fs.DurationVar(&o.Modbus.Timeout, "modbus-timeout", o.Modbus.Timeout, "Socket timeout of every Modbus request")
	fs.DurationVar(&o.Modbus.IdleTimeout, "modbus-idle-timeout", o.Modbus.IdleTimeout, "Close idle Modbus connections after this duration, 0 keeps them open")
	fs.Uint8Var(&o.Modbus.SlaveID, "modbus-slave-id", o.Modbus.SlaveID, "Modbus unit identifier of the devices")
	fs.StringVar(&o.MQTT.Broker, "mqtt-broker", o.MQTT.Broker, "MQTT broker URL, e.g. tcp://localhost:1883. Empty disables publishing")
	fs.StringVar(&o.MQTT.ClientID, "mqtt-client-id", o.MQTT.ClientID, "MQTT client identifier")
	fs.Uint8Var(&o.MQTT.QoS, "mqtt-qos", o.MQTT.QoS, "MQTT quality of service (0, 1 or 2)")
}

func (o *Options) Config() (*config.Config, error) {
	if err := baseoptions.LoadEnv(o.EnvFile); err != nil {
		return nil, err
	}
	o.MQTT.Username = os.Getenv(EnvMqttUsername)
	o.MQTT.Password = os.Getenv(EnvMqttPassword)

	reg := registry.NewRegistry()
	models, err := reg.LoadDir(o.ModelDir)
	if err != nil {
		return nil, err
	}
	klog.V(1).InfoS("Registered models", "models", models)

	b, err := broker.NewMqttBroker(o.MQTT)
	if err != nil {
		return nil, err
	}

	simOpts := []simulator.Option{
		simulator.WithClientFactory(modbusruntime.TCPClientFactory(modbusruntime.TCPClientOptions{
			Timeout:     o.Modbus.Timeout,
			IdleTimeout: o.Modbus.IdleTimeout,
			SlaveID:     o.Modbus.SlaveID,
		})),
	}
	if b.Enabled() {
		simOpts = append(simOpts, simulator.WithPublisher(b))
	}

	return &config.Config{
		Registry:  reg,
		Simulator: simulator.NewSimulator(reg, simOpts...),
		Broker:    b,
	}, nil
}
