package sensor

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/snore/snore-cli/internal/scenario"
)

// SampleInterval is how often the pulse pin is read, in milliseconds. A
// simulated heart rate of bpm drives the pin high with probability
// bpm*SampleInterval/60000 so that averaging the pin over a window and
// scaling by 60000/SampleInterval recovers bpm.
const SampleInterval = 200

// Simulated produces readings from a running scenario
type Simulated struct {
	engine *scenario.Engine
	rng    *rand.Rand
	mu     sync.Mutex
}

// NewSimulated creates simulated sensors seeded with seed
func NewSimulated(engine *scenario.Engine, seed int64) *Simulated {
	return &Simulated{
		engine: engine,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Phase returns the scenario phase the readings are drawn from
func (s *Simulated) Phase() string {
	return s.engine.Phase()
}

// Complete reports whether the scenario has run its full duration
func (s *Simulated) Complete() bool {
	return s.engine.IsComplete()
}

// AccelerationAxis returns milli-g on one axis, clamped to the ±2048 range
func (s *Simulated) AccelerationAxis(axis Axis) (float64, error) {
	if axis < AxisX || axis > AxisZ {
		return 0, fmt.Errorf("unknown axis %v", axis)
	}

	cfg := s.engine.SignalConfig(scenario.SignalAccel)
	if cfg == nil {
		return 0, nil
	}

	baseline := 0.0
	if len(cfg.Vector) == 3 {
		baseline = cfg.Vector[axis]
	}

	s.mu.Lock()
	value := baseline + s.rng.NormFloat64()*cfg.Noise
	s.mu.Unlock()

	return clamp(value, -2048, 2048), nil
}

// SoundLevel returns a 0-255 sound level
func (s *Simulated) SoundLevel() (float64, error) {
	cfg := s.engine.SignalConfig(scenario.SignalSound)
	if cfg == nil {
		return 0, nil
	}

	s.mu.Lock()
	value := modify(cfg) + s.rng.NormFloat64()*cfg.Noise
	s.mu.Unlock()

	return math.Round(clamp(value, 0, 255)), nil
}

// DigitalRead returns 0 or 1. Only the pulse pin is simulated; other pins read low.
func (s *Simulated) DigitalRead(pin int) (float64, error) {
	if pin != PulsePin {
		return 0, nil
	}

	cfg := s.engine.SignalConfig(scenario.SignalPulse)
	if cfg == nil {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bpm := clamp(modify(cfg)+s.rng.NormFloat64()*cfg.Noise, 30, 220)
	if s.rng.Float64() < bpm*SampleInterval/60000 {
		return 1, nil
	}
	return 0, nil
}

func modify(cfg *scenario.SignalConfig) float64 {
	value := cfg.Baseline
	if cfg.Add != 0 {
		value += cfg.Add
	}
	if cfg.Multiply != 0 {
		value *= cfg.Multiply
	}
	return value
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
