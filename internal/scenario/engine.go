package scenario

import "time"

// Engine tracks progression through a scenario's phases
type Engine struct {
	scenario *Scenario
	now      func() time.Time
	start    time.Time
}

func NewEngine(s *Scenario) *Engine {
	return NewEngineWithClock(s, time.Now)
}

// NewEngineWithClock creates an Engine reading time from now
func NewEngineWithClock(s *Scenario, now func() time.Time) *Engine {
	return &Engine{
		scenario: s,
		now:      now,
		start:    now(),
	}
}

// Elapsed returns the time since the scenario started
func (e *Engine) Elapsed() time.Duration {
	return e.now().Sub(e.start)
}

// Phase returns the name of the current phase
func (e *Engine) Phase() string {
	return e.scenario.PhaseAt(e.Elapsed())
}

// SignalConfig returns the effective config for a signal right now
func (e *Engine) SignalConfig(signalName string) *SignalConfig {
	return e.scenario.GetEffectiveConfig(signalName, e.Elapsed())
}

// IsComplete reports whether the scenario's duration has passed
func (e *Engine) IsComplete() bool {
	d, unlimited := ParseDuration(e.scenario.Duration)
	if unlimited {
		return false
	}
	return e.Elapsed() >= d
}

// Scenario returns the scenario being run
func (e *Engine) Scenario() *Scenario {
	return e.scenario
}
