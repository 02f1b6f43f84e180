package runtime

import (
	"modbushil/pkg/method"
)

// ModelConfig is the boundary format of one model file.
type ModelConfig struct {
	Model     string                    `json:"model,omitempty"`
	IOBundles map[string]IOBundleConfig `json:"modbus_io_bundles"`
	Variables map[string]VariableConfig `json:"variables"`
	Methods   MethodsConfig             `json:"methods,omitempty"`
}

// IOBundleConfig maps a register type name to its range strings.
type IOBundleConfig map[string][]string

type VariableConfig struct {
	IOType   string   `json:"iotype"`
	DataType string   `json:"datatype,omitempty"`
	Register string   `json:"register,omitempty"`
	Scale    *float64 `json:"scale,omitempty"`
	Mosaik   bool     `json:"mosaik,omitempty"`
}

type MethodsConfig struct {
	Read  []method.Config `json:"read,omitempty"`
	Write []method.Config `json:"write,omitempty"`
}

type PublishData struct {
	Payload Payload `json:"payload"`
}

type Payload struct {
	Data []TimeSeriesData `json:"data"`
}

type TimeSeriesData struct {
	Timestamp string      `json:"timestamp"`
	SimTime   int64       `json:"simTime"`
	Values    []PointData `json:"values"`
}

type PointData struct {
	DataPointId string      `json:"dataPointId"`
	Value       interface{} `json:"value"`
}
