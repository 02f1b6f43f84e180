package runtime

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"modbushil/pkg/runtime/constant"
)

// DecodeModelConfig converts a loosely typed config tree, as produced by a
// JSON or YAML decoder, into a ModelConfig. Unknown keys are rejected.
func DecodeModelConfig(raw map[string]interface{}) (*ModelConfig, error) {
	c := &ModelConfig{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           c,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrapf(constant.ErrConfig, "%v", err)
	}
	return c, nil
}

// LoadModelConfig parses a YAML or JSON document.
func LoadModelConfig(data []byte) (*ModelConfig, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(constant.ErrConfig, "%v", err)
	}
	if raw == nil {
		return nil, errors.Wrap(constant.ErrConfig, "empty model config")
	}
	return DecodeModelConfig(raw)
}
