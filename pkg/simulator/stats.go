package simulator

import (
	"time"

	"go.uber.org/atomic"
)

type Stats struct {
	Steps       int64   `json:"steps"`
	Cycles      int64   `json:"cycles"`
	CycleErrors int64   `json:"cycle_errors"`
	LastStepMs  float64 `json:"last_step_ms"`
	MaxStepMs   float64 `json:"max_step_ms"`
	MeanStepMs  float64 `json:"mean_step_ms"`
}

type stats struct {
	steps       *atomic.Int64
	cycles      *atomic.Int64
	cycleErrors *atomic.Int64
	last        *atomic.Duration
	max         *atomic.Duration
	total       *atomic.Duration
}

func newStats() *stats {
	return &stats{
		steps:       atomic.NewInt64(0),
		cycles:      atomic.NewInt64(0),
		cycleErrors: atomic.NewInt64(0),
		last:        atomic.NewDuration(0),
		max:         atomic.NewDuration(0),
		total:       atomic.NewDuration(0),
	}
}

func (s *stats) observeCycle(err error) {
	s.cycles.Inc()
	if err != nil {
		s.cycleErrors.Inc()
	}
}

func (s *stats) observeStep(d time.Duration) {
	s.steps.Inc()
	s.last.Store(d)
	s.total.Add(d)
	for {
		old := s.max.Load()
		if d <= old || s.max.CAS(old, d) {
			return
		}
	}
}

func (s *stats) snapshot() Stats {
	out := Stats{
		Steps:       s.steps.Load(),
		Cycles:      s.cycles.Load(),
		CycleErrors: s.cycleErrors.Load(),
		LastStepMs:  milliseconds(s.last.Load()),
		MaxStepMs:   milliseconds(s.max.Load()),
	}
	if out.Steps > 0 {
		out.MeanStepMs = milliseconds(s.total.Load()) / float64(out.Steps)
	}
	return out
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
