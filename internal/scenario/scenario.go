package scenario

import "time"

// Signal names understood by the simulated sensors
const (
	SignalAccel = "accel" // per-axis acceleration, milli-g
	SignalSound = "sound" // sound level, 0-255
	SignalPulse = "pulse" // heart rate driving the pulse pin, bpm
)

// Scenario describes a night of sleep as a sequence of phases
type Scenario struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Duration    string                   `yaml:"duration"` // e.g. "8h", "unlimited"
	Signals     map[string]*SignalConfig `yaml:"signals"`
	Phases      []Phase                  `yaml:"phases"`
}

// Phase is a time-bounded stage of a scenario, such as deep sleep
type Phase struct {
	Name      string                   `yaml:"name"`
	Duration  string                   `yaml:"duration"`
	Overrides map[string]*SignalConfig `yaml:"overrides,omitempty"`
}

// SignalConfig shapes one simulated signal
type SignalConfig struct {
	Baseline float64   `yaml:"baseline,omitempty"`
	Vector   []float64 `yaml:"vector,omitempty"` // per-axis baseline for accel
	Noise    float64   `yaml:"noise,omitempty"`

	Add      float64 `yaml:"add,omitempty"`
	Multiply float64 `yaml:"multiply,omitempty"`
}

// ParseDuration parses "8h", "30s", "unlimited"; empty means unlimited
func ParseDuration(s string) (time.Duration, bool) {
	if s == "unlimited" || s == "" {
		return 0, true
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, false
}

// GetEffectiveConfig returns the signal config with the phase at elapsed applied
func (s *Scenario) GetEffectiveConfig(signalName string, elapsed time.Duration) *SignalConfig {
	base := s.Signals[signalName]
	if base == nil {
		return nil
	}

	phase := s.phaseAt(elapsed)
	if phase == nil {
		return base
	}

	override, ok := phase.Overrides[signalName]
	if !ok || override == nil {
		return base
	}

	merged := *base
	if override.Baseline != 0 {
		merged.Baseline = override.Baseline
	}
	if len(override.Vector) > 0 {
		merged.Vector = override.Vector
	}
	if override.Noise != 0 {
		merged.Noise = override.Noise
	}
	if override.Add != 0 {
		merged.Add = override.Add
	}
	if override.Multiply != 0 {
		merged.Multiply = override.Multiply
	}
	return &merged
}

// PhaseAt returns the name of the phase active at elapsed, or "" without phases
func (s *Scenario) PhaseAt(elapsed time.Duration) string {
	if p := s.phaseAt(elapsed); p != nil {
		return p.Name
	}
	return ""
}

func (s *Scenario) phaseAt(elapsed time.Duration) *Phase {
	if len(s.Phases) == 0 {
		return nil
	}

	var start time.Duration
	for i := range s.Phases {
		d, unlimited := ParseDuration(s.Phases[i].Duration)
		if unlimited || elapsed < start+d {
			return &s.Phases[i]
		}
		start += d
	}

	// past the end: hold the last phase
	return &s.Phases[len(s.Phases)-1]
}
