// Package registry keeps the validated integration settings of every known
// model by name.
package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"modbushil/pkg/method"
	"modbushil/pkg/runtime"
	"modbushil/pkg/runtime/constant"
)

var modelFileExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

type Option func(*Registry)

// WithFunctions adds native functions available to function methods.
func WithFunctions(functions method.FunctionTable) Option {
	return func(r *Registry) {
		r.functions = r.functions.Merge(functions)
	}
}

type Registry struct {
	mu        sync.RWMutex
	models    map[string]*runtime.IntegrationSettings
	functions method.FunctionTable
	sealed    bool
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		models:    make(map[string]*runtime.IntegrationSettings),
		functions: method.DefaultFunctions(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Functions() method.FunctionTable {
	return r.functions
}

// Seal makes the registry read-only. It is called once the first simulation
// starts so that every instance sees the same set of models.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sealed {
		r.sealed = true
		klog.V(3).InfoS("Sealed model registry", "models", len(r.models))
	}
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Register stores settings under name. A name can be registered once, and
// only before Seal.
func (r *Registry) Register(name string, settings *runtime.IntegrationSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errors.Wrapf(constant.ErrRegistrySealed, "Model %s cannot be registered after the simulation started", name)
	}
	if _, ok := r.models[name]; ok {
		return errors.Wrapf(constant.ErrModelRegistered, "Model %s is already registered", name)
	}
	r.models[name] = settings
	klog.V(3).InfoS("Succeed to register model", "model", name, "variables", len(settings.Variables))
	return nil
}

// RegisterConfig validates config and registers the result.
func (r *Registry) RegisterConfig(name string, config *runtime.ModelConfig) error {
	if r.Sealed() {
		return errors.Wrapf(constant.ErrRegistrySealed, "Model %s cannot be registered after the simulation started", name)
	}
	if r.Has(name) {
		return errors.Wrapf(constant.ErrModelRegistered, "Model %s is already registered", name)
	}
	settings, err := runtime.NewIntegrationSettings(config, r.functions)
	if err != nil {
		return errors.Wrapf(err, "model %s", name)
	}
	return r.Register(name, settings)
}

// RegisterRaw decodes a loosely typed config tree before registering it.
func (r *Registry) RegisterRaw(name string, raw map[string]interface{}) error {
	config, err := runtime.DecodeModelConfig(raw)
	if err != nil {
		return errors.Wrapf(err, "model %s", name)
	}
	return r.RegisterConfig(name, config)
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[name]
	return ok
}

func (r *Registry) Get(name string) (*runtime.IntegrationSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.models[name]
	if !ok {
		return nil, errors.Wrapf(constant.ErrUnknownModel, "%s", name)
	}
	return s, nil
}

// Models returns the registered names in sorted order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile registers one model file. The model name is the file's model key,
// or the base name without extension.
func (r *Registry) LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	config, err := runtime.LoadModelConfig(data)
	if err != nil {
		return "", errors.Wrapf(err, "load %s", path)
	}
	name := config.Model
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := r.RegisterConfig(name, config); err != nil {
		return "", errors.Wrapf(err, "load %s", path)
	}
	return name, nil
}

// LoadDir registers every model file in dir, stopping at the first failure.
func (r *Registry) LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var loaded []string
	for _, e := range entries {
		if e.IsDir() || !modelFileExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		name, err := r.LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, err
		}
		loaded = append(loaded, name)
	}
	klog.V(2).InfoS("Succeed to load models", "dir", dir, "models", loaded)
	return loaded, nil
}
