// Package simulator exposes registered models as a time-based co-simulation
// component. Every created entity is a Modbus device that is written and read
// once per step, either inline or one step behind on a background worker.
package simulator

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"

	"modbushil/pkg/protocol/modbus"
	modbusruntime "modbushil/pkg/protocol/modbus/runtime"
	"modbushil/pkg/registry"
	"modbushil/pkg/runtime/constant"
	"modbushil/pkg/utils/convutil"
	"modbushil/pkg/utils/differenceutil"
	"modbushil/pkg/utils/uuidutil"
)

// Publisher receives the exposed data of an entity after every step. It must
// not block.
type Publisher interface {
	Publish(session, eid string, simTime int64, values map[string]interface{})
}

type ModelMeta struct {
	Public     bool     `json:"public"`
	Params     []string `json:"params"`
	Attrs      []string `json:"attrs"`
	NonTrigger []string `json:"non-trigger"`
	Persistent []string `json:"persistent"`
}

type Meta struct {
	APIVersion string               `json:"api_version"`
	Type       string               `json:"type"`
	Models     map[string]ModelMeta `json:"models"`
}

type Entity struct {
	EID  string `json:"eid"`
	Type string `json:"type"`
}

// Inputs maps eid to attribute to source to value.
type Inputs map[string]map[string]map[string]interface{}

// Outputs maps eid to the requested attributes. No attributes means all.
type Outputs map[string][]string

type Data map[string]map[string]interface{}

type Option func(*Simulator)

func WithClientFactory(factory modbusruntime.ClientFactory) Option {
	return func(s *Simulator) {
		s.factory = factory
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Simulator) {
		s.publisher = p
	}
}

// WithClock replaces the time source used for step timing.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

type entity struct {
	eid     string
	model   string
	manager *modbus.MappingManager
	cache   map[string]interface{}
	pending *task
}

type Simulator struct {
	mux sync.Mutex

	registry  *registry.Registry
	factory   modbusruntime.ClientFactory
	publisher Publisher
	now       func() time.Time
	session   string

	sid            string
	timeResolution float64
	stepSize       int64
	async          bool
	initialized    bool
	finalized      bool

	counters map[string]int
	entities map[string]*entity
	order    []string
	worker   *worker
	stats    *stats
}

func NewSimulator(reg *registry.Registry, opts ...Option) *Simulator {
	s := &Simulator{
		registry: reg,
		factory:  modbusruntime.TCPClientFactory(modbusruntime.TCPClientOptions{Timeout: 3 * time.Second}),
		now:      time.Now,
		session:  uuidutil.UUID(),
		counters: make(map[string]int),
		entities: make(map[string]*entity),
		stats:    newStats(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Session() string {
	return s.session
}

// Meta describes every registered model.
func (s *Simulator) Meta() Meta {
	meta := Meta{
		APIVersion: APIVersion,
		Type:       SimType,
		Models:     make(map[string]ModelMeta),
	}
	for _, name := range s.registry.Models() {
		settings, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		meta.Models[name] = ModelMeta{
			Public:     true,
			Params:     []string{ParamHost, ParamPort},
			Attrs:      nonNil(settings.ExposedVariables()),
			NonTrigger: nonNil(settings.NonTriggerVariables()),
			Persistent: nonNil(settings.PersistentVariables()),
		}
	}
	return meta
}

func (s *Simulator) Init(sid string, timeResolution float64, stepSize int64, useAsync bool) (Meta, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.finalized {
		return Meta{}, ErrFinalized
	}
	if s.initialized {
		return Meta{}, errors.Wrapf(ErrAlreadyInitialized, "sid %s", s.sid)
	}
	if stepSize <= 0 {
		return Meta{}, errors.Wrap(constant.ErrConfig, "Step size must be positive and non-zero")
	}
	s.sid = sid
	s.timeResolution = timeResolution
	s.stepSize = stepSize
	s.async = useAsync
	s.initialized = true
	s.registry.Seal()
	if useAsync {
		s.worker = newWorker()
		s.worker.Start()
	}
	klog.V(1).InfoS("Succeed to init simulator", "sid", sid, "session", s.session, "stepSize", stepSize, "async", useAsync)
	return s.Meta(), nil
}

func (s *Simulator) checkRunning() error {
	if s.finalized {
		return ErrFinalized
	}
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Create connects num new instances of model at host:port.
func (s *Simulator) Create(num int, model, host string, port int) ([]Entity, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	if num < 0 {
		return nil, errors.Wrapf(constant.ErrConfig, "Number of entities must not be negative: %d", num)
	}
	settings, err := s.registry.Get(model)
	if err != nil {
		return nil, err
	}

	created := make([]Entity, 0, num)
	for i := 0; i < num; i++ {
		eid := fmt.Sprintf("%s_%s_%d_%d", model, host, port, s.counters[model])
		s.counters[model]++

		manager := modbus.NewMappingManager(settings, s.factory(host, port))
		if err := manager.Connect(); err != nil {
			klog.V(2).InfoS("Failed to connect entity, retrying on first step", "eid", eid, "err", err)
		}
		e := &entity{
			eid:     eid,
			model:   model,
			manager: manager,
			cache:   make(map[string]interface{}),
		}
		if s.async {
			e.pending = completedTask(eid, settings.PersistentVariableDefaults(), nil)
		}
		s.entities[eid] = e
		s.order = append(s.order, eid)
		created = append(created, Entity{EID: eid, Type: model})
		klog.V(3).InfoS("Succeed to create entity", "eid", eid, "model", model)
	}
	return created, nil
}

// Step cycles every entity and returns the next time the simulator wants to
// be stepped. Failed entities do not stop the others; their errors are
// aggregated.
func (s *Simulator) Step(simTime int64, inputs Inputs, maxAdvance int64) (int64, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if err := s.checkRunning(); err != nil {
		return 0, err
	}
	unknown, _, _ := differenceutil.DifferenceAndIntersectionStrings(differenceutil.Keys(inputs), s.order)
	if len(unknown) > 0 {
		return 0, errors.Wrapf(ErrUnknownEntity, "%v", unknown)
	}

	start := s.now()
	var errs []error
	for _, eid := range s.order {
		e := s.entities[eid]
		vars, err := sumInputs(inputs[eid])
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "entity %s", eid))
			continue
		}
		if s.async {
			if err := s.stepAsync(e, vars); err != nil {
				errs = append(errs, errors.Wrapf(err, "entity %s", eid))
			}
		} else {
			result, err := cycle(e.manager, vars)
			s.stats.observeCycle(err)
			if err != nil {
				klog.V(2).InfoS("Failed to cycle entity", "eid", eid, "time", simTime, "err", err)
				errs = append(errs, errors.Wrapf(err, "entity %s", eid))
			} else {
				merge(e.cache, result)
			}
		}
		if s.publisher != nil && len(e.cache) > 0 {
			s.publisher.Publish(s.session, eid, simTime, copyValues(e.cache))
		}
	}
	elapsed := s.now().Sub(start)
	s.stats.observeStep(elapsed)
	klog.V(4).InfoS("Stepped simulator", "time", simTime, "maxAdvance", maxAdvance, "entities", len(s.order), "elapsed", elapsed)

	return simTime + s.stepSize, utilerrors.NewAggregate(errs)
}

// stepAsync consumes the result of the previous cycle and submits the next
// one. The entity's previous cycle is always consumed before a new one is
// queued.
func (s *Simulator) stepAsync(e *entity, vars map[string]interface{}) error {
	result, err := e.pending.Wait()
	s.stats.observeCycle(err)
	if err != nil {
		klog.V(2).InfoS("Failed to cycle entity", "eid", e.eid, "err", err)
	} else {
		merge(e.cache, result)
	}
	manager := e.manager
	e.pending = s.worker.Submit(e.eid, func() (map[string]interface{}, error) {
		return cycle(manager, vars)
	})
	return err
}

func cycle(m *modbus.MappingManager, vars map[string]interface{}) (map[string]interface{}, error) {
	m.UpdateVariableBuffer(vars)
	if err := m.WriteCycle(); err != nil {
		return nil, err
	}
	if err := m.ReadCycle(); err != nil {
		return nil, err
	}
	return m.GetAllExposedReadVariables(), nil
}

// sumInputs adds up the values every source provides for an attribute.
func sumInputs(attrs map[string]map[string]interface{}) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(attrs))
	for attr, sources := range attrs {
		var sum float64
		for src, v := range sources {
			f, err := convutil.ToFloat64(v)
			if err != nil {
				return nil, errors.Wrapf(err, "input %s from %s", attr, src)
			}
			sum += f
		}
		vars[attr] = sum
	}
	return vars, nil
}

// GetData returns the cached exposed values of the requested entities.
func (s *Simulator) GetData(outputs Outputs) (Data, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if err := s.checkRunning(); err != nil {
		return nil, err
	}
	data := make(Data, len(outputs))
	for eid, attrs := range outputs {
		e, ok := s.entities[eid]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownEntity, "%s", eid)
		}
		if len(attrs) == 0 {
			data[eid] = copyValues(e.cache)
			continue
		}
		values := make(map[string]interface{}, len(attrs))
		for _, attr := range attrs {
			if v, ok := e.cache[attr]; ok {
				values[attr] = v
			}
		}
		data[eid] = values
	}
	return data, nil
}

// Finalize stops the worker and closes every device connection. It is a
// no-op before Init.
func (s *Simulator) Finalize() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if !s.initialized || s.finalized {
		return nil
	}
	s.finalized = true
	if s.worker != nil {
		s.worker.Stop()
	}
	var errs []error
	for _, eid := range s.order {
		if err := s.entities[eid].manager.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "entity %s", eid))
		}
	}
	klog.V(1).InfoS("Succeed to finalize simulator", "sid", s.sid, "entities", len(s.order))
	return utilerrors.NewAggregate(errs)
}

func (s *Simulator) Stats() Stats {
	return s.stats.snapshot()
}

// Entities returns the created eids in creation order.
func (s *Simulator) Entities() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append([]string(nil), s.order...)
}

func merge(dst, src map[string]interface{}) {
	for k, v := range src {
		dst[k] = v
	}
}

func copyValues(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	merge(out, m)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
