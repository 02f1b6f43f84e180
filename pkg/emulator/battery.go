// Package emulator serves a simple battery over Modbus TCP so the integration
// layer can be exercised without hardware.
package emulator

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tbrandon/mbserver"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// Holding register map.
const (
	RegisterPowerTarget uint16 = 1
	RegisterState       uint16 = 2
	RegisterPowerOut    uint16 = 3
	RegisterEnergy      uint16 = 4
)

const (
	StateDischarging uint16 = 0
	StateCharging    uint16 = 1
)

var ErrInvalidConfig = errors.New("invalid battery config")

type Config struct {
	CapacityWh float64       `json:"capacity-wh"`
	GenMaxW    float64       `json:"gen-max-w"`
	LoadMaxW   float64       `json:"load-max-w"`
	Step       time.Duration `json:"step"`
}

func DefaultConfig() Config {
	return Config{
		CapacityWh: 10000,
		GenMaxW:    4000,
		LoadMaxW:   3000,
		Step:       time.Second,
	}
}

// Validate checks that every limit fits into one register.
func (c Config) Validate() error {
	for name, v := range map[string]float64{"capacity": c.CapacityWh, "generation limit": c.GenMaxW, "load limit": c.LoadMaxW} {
		if v <= 0 || v > math.MaxUint16 {
			return errors.Wrapf(ErrInvalidConfig, "%s must be in (0, %d], got %v", name, math.MaxUint16, v)
		}
	}
	if c.Step <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "step must be positive, got %s", c.Step)
	}
	return nil
}

type Battery struct {
	cfg Config

	mu       sync.Mutex
	server   *mbserver.Server
	powerW   float64
	energyWh float64
}

func NewBattery(cfg Config) (*Battery, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Battery{cfg: cfg, server: mbserver.NewServer()}
	b.server.RegisterFunctionHandler(3, b.locked(mbserver.ReadHoldingRegisters))
	b.server.RegisterFunctionHandler(6, b.locked(mbserver.WriteHoldingRegister))
	b.server.RegisterFunctionHandler(16, b.locked(mbserver.WriteHoldingRegisters))
	return b, nil
}

func (b *Battery) locked(fn func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception)) func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception) {
	return func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		b.mu.Lock()
		defer b.mu.Unlock()
		return fn(s, frame)
	}
}

// Start listens on addr, e.g. "0.0.0.0:5020".
func (b *Battery) Start(addr string) error {
	if err := b.server.ListenTCP(addr); err != nil {
		return fmt.Errorf("listen modbus tcp %s: %w", addr, err)
	}
	klog.V(1).InfoS("Battery emulator listening", "addr", addr, "capacityWh", b.cfg.CapacityWh)
	return nil
}

// Run steps the battery every configured period until stopCh is closed.
func (b *Battery) Run(stopCh <-chan struct{}) {
	wait.Until(b.Step, b.cfg.Step, stopCh)
}

// Step applies the requested power for one period.
func (b *Battery) Step() {
	b.mu.Lock()
	defer b.mu.Unlock()

	target := float64(b.server.HoldingRegisters[RegisterPowerTarget])
	state := b.server.HoldingRegisters[RegisterState]
	switch state {
	case StateDischarging:
		if b.energyWh <= 0 {
			b.powerW = 0
		} else {
			b.powerW = math.Min(target, b.cfg.LoadMaxW)
		}
	case StateCharging:
		if b.energyWh >= b.cfg.CapacityWh {
			b.powerW = 0
		} else {
			b.powerW = -math.Min(target, b.cfg.GenMaxW)
		}
	default:
		klog.V(2).InfoS("Unknown battery state, idling", "state", state)
		b.powerW = 0
	}

	b.energyWh -= b.powerW * b.cfg.Step.Seconds() / 3600
	b.energyWh = math.Max(0, math.Min(b.energyWh, b.cfg.CapacityWh))

	b.server.HoldingRegisters[RegisterPowerOut] = uint16(math.Abs(b.powerW))
	b.server.HoldingRegisters[RegisterEnergy] = uint16(b.energyWh)
	klog.V(4).InfoS("Battery stepped", "targetW", target, "state", state, "powerW", b.powerW, "energyWh", b.energyWh)
}

// Power is positive while discharging.
func (b *Battery) Power() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.powerW
}

func (b *Battery) Energy() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.energyWh
}

func (b *Battery) Holding(addr uint16) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.server.HoldingRegisters[addr]
}

func (b *Battery) SetHolding(addr uint16, value uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.server.HoldingRegisters[addr] = value
}

func (b *Battery) Close() {
	b.server.Close()
	klog.V(1).InfoS("Battery emulator stopped")
}
