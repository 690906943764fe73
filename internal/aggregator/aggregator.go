// Package aggregator accumulates the wristwatch's readings over one send
// cycle and reduces the pulse pin samples to a per-minute rate.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/sensor"
	"github.com/snore/snore-cli/internal/transport"
)

const (
	// IntervalSize is the pulse sampling tick, in milliseconds
	IntervalSize = 200
	// BPMeasuresPerInterval is the number of pulse ticks per send cycle
	BPMeasuresPerInterval = 20
)

// ErrEmptyPulseWindow is returned when a rate is asked for with no samples
var ErrEmptyPulseWindow = errors.New("no pulse samples in window")

// EmptyWindowPolicy decides what is sent for pulse when the window is empty
type EmptyWindowPolicy string

const (
	// EmptyWindowSkip sends accel and vol only and reports ErrEmptyPulseWindow
	EmptyWindowSkip EmptyWindowPolicy = "skip"
	// EmptyWindowSentinel sends a fixed sentinel value as the pulse
	EmptyWindowSentinel EmptyWindowPolicy = "sentinel"
)

// ParseEmptyWindowPolicy accepts "skip", "sentinel" or "" (skip)
func ParseEmptyWindowPolicy(s string) (EmptyWindowPolicy, error) {
	switch EmptyWindowPolicy(s) {
	case "", EmptyWindowSkip:
		return EmptyWindowSkip, nil
	case EmptyWindowSentinel:
		return EmptyWindowSentinel, nil
	}
	return "", fmt.Errorf("unknown empty window policy %q (expected skip|sentinel)", s)
}

// Config tunes an Aggregator
type Config struct {
	IntervalSize int // ms between pulse samples
	EmptyWindow  EmptyWindowPolicy
	Sentinel     float64
}

// DefaultConfig returns the device's stock timing with the skip policy
func DefaultConfig() Config {
	return Config{
		IntervalSize: IntervalSize,
		EmptyWindow:  EmptyWindowSkip,
		Sentinel:     -1,
	}
}

// Aggregator is the wristwatch's per-cycle state. It is not safe for
// concurrent use; the owning controller serializes access.
type Aggregator struct {
	cfg     Config
	sensors sensor.Sensors

	accel     float64
	vol       float64
	bpSamples []float64
}

func New(sensors sensor.Sensors, cfg Config) *Aggregator {
	if cfg.IntervalSize <= 0 {
		cfg.IntervalSize = IntervalSize
	}
	if cfg.EmptyWindow == "" {
		cfg.EmptyWindow = EmptyWindowSkip
	}
	return &Aggregator{
		cfg:       cfg,
		sensors:   sensors,
		bpSamples: make([]float64, 0, BPMeasuresPerInterval),
	}
}

// RecordAccel stores the current acceleration magnitude, replacing the last one
func (a *Aggregator) RecordAccel() error {
	var sum float64
	for _, axis := range []sensor.Axis{sensor.AxisX, sensor.AxisY, sensor.AxisZ} {
		v, err := a.sensors.AccelerationAxis(axis)
		if err != nil {
			return fmt.Errorf("failed to read acceleration %s: %w", axis, err)
		}
		sum += v * v
	}
	a.accel = math.Sqrt(sum)
	return nil
}

// RecordVolume stores the current sound level, replacing the last one
func (a *Aggregator) RecordVolume() error {
	v, err := a.sensors.SoundLevel()
	if err != nil {
		return fmt.Errorf("failed to read sound level: %w", err)
	}
	a.vol = v
	return nil
}

// RecordPulseSample appends one pulse pin reading to the window
func (a *Aggregator) RecordPulseSample() error {
	v, err := a.sensors.DigitalRead(sensor.PulsePin)
	if err != nil {
		return fmt.Errorf("failed to read pulse pin: %w", err)
	}
	a.bpSamples = append(a.bpSamples, v)
	return nil
}

// Rate extrapolates the window's mean to a per-minute figure:
// mean(samples) * 60000 / IntervalSize.
func (a *Aggregator) Rate() (float64, error) {
	if len(a.bpSamples) == 0 {
		return 0, ErrEmptyPulseWindow
	}
	var total float64
	for _, s := range a.bpSamples {
		total += s
	}
	return total / float64(len(a.bpSamples)) * (60000 / float64(a.cfg.IntervalSize)), nil
}

// Accel returns the last acceleration magnitude
func (a *Aggregator) Accel() float64 { return a.accel }

// Vol returns the last sound level
func (a *Aggregator) Vol() float64 { return a.vol }

// Samples returns the number of pulse samples in the window
func (a *Aggregator) Samples() int { return len(a.bpSamples) }

// FlushAndSend sends accel, pulse and vol in that order and empties the
// window. The window is emptied even when the rate cannot be computed or a
// send fails. Every send is attempted; send failures are joined.
func (a *Aggregator) FlushAndSend(ctx context.Context, radio transport.Radio) error {
	rate, rateErr := a.Rate()
	a.bpSamples = a.bpSamples[:0]

	var errs []error
	send := func(name string, value float64) {
		if err := radio.SendValue(ctx, name, value); err != nil {
			errs = append(errs, fmt.Errorf("failed to send %s: %w", name, err))
		}
	}

	send(models.MetricAccel, a.accel)
	switch {
	case rateErr == nil:
		send(models.MetricPulse, rate)
	case a.cfg.EmptyWindow == EmptyWindowSentinel:
		send(models.MetricPulse, a.cfg.Sentinel)
		rateErr = nil
	}
	send(models.MetricVol, a.vol)

	if rateErr != nil {
		errs = append(errs, rateErr)
	}
	return errors.Join(errs...)
}
