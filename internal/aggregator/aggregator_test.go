package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/sensor"
	"github.com/snore/snore-cli/internal/transport"
)

// recordingRadio captures sends in order
type recordingRadio struct {
	sent []models.Message
	fail map[string]error
}

func (r *recordingRadio) SendValue(_ context.Context, name string, value float64) error {
	if err := r.fail[name]; err != nil {
		return err
	}
	r.sent = append(r.sent, models.Message{Name: name, Value: value})
	return nil
}
func (r *recordingRadio) OnReceive(transport.Handler) {}
func (r *recordingRadio) SetGroup(int)                {}
func (r *recordingRadio) Group() int                  { return 0 }
func (r *recordingRadio) Close() error                { return nil }

func (r *recordingRadio) names() []string {
	var out []string
	for _, m := range r.sent {
		out = append(out, m.Name)
	}
	return out
}

func withPulse(samples ...float64) *Aggregator {
	return New(&sensor.Sequence{Pulse: samples}, DefaultConfig())
}

func sampleAll(t *testing.T, a *Aggregator, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, a.RecordPulseSample())
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{"half high", []float64{0, 1, 1, 0}, 150},
		{"leading high", []float64{1, 1, 0, 0}, 150},
		{"all high", []float64{1, 1, 1, 1, 1}, 300},
		{"all low", []float64{0, 0, 0}, 0},
		{"one in twenty", append([]float64{1}, make([]float64, 19)...), 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := withPulse(tt.samples...)
			sampleAll(t, a, len(tt.samples))

			rate, err := a.Rate()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, rate, 1e-9)
		})
	}
}

func TestRate_EmptyWindow(t *testing.T) {
	_, err := withPulse().Rate()
	assert.ErrorIs(t, err, ErrEmptyPulseWindow)
}

func TestRate_CustomInterval(t *testing.T) {
	a := New(&sensor.Sequence{Pulse: []float64{1, 0}}, Config{IntervalSize: 100})
	sampleAll(t, a, 2)

	rate, err := a.Rate()
	require.NoError(t, err)
	assert.InDelta(t, 300, rate, 1e-9)
}

func TestRecordAccel_Magnitude(t *testing.T) {
	a := New(&sensor.Fixed{Accel: [3]float64{3, 4, 12}}, DefaultConfig())
	require.NoError(t, a.RecordAccel())
	assert.InDelta(t, 13, a.Accel(), 1e-9)
}

func TestRecordVolume_Overwrites(t *testing.T) {
	fixed := &sensor.Fixed{Sound: 10}
	a := New(fixed, DefaultConfig())

	require.NoError(t, a.RecordVolume())
	fixed.Sound = 42
	require.NoError(t, a.RecordVolume())
	assert.Equal(t, 42.0, a.Vol())
}

func TestFlushAndSend_OrderAndReset(t *testing.T) {
	a := New(&sensor.Sequence{
		Fixed: sensor.Fixed{Accel: [3]float64{0, 0, 9.8}, Sound: 40},
		Pulse: []float64{1, 1, 0, 0},
	}, DefaultConfig())
	require.NoError(t, a.RecordAccel())
	require.NoError(t, a.RecordVolume())
	sampleAll(t, a, 4)
	require.Equal(t, 4, a.Samples())

	radio := &recordingRadio{}
	require.NoError(t, a.FlushAndSend(context.Background(), radio))

	assert.Equal(t, []string{"accel", "pulse", "vol"}, radio.names())
	assert.InDelta(t, 9.8, radio.sent[0].Value, 1e-9)
	assert.Equal(t, 150.0, radio.sent[1].Value)
	assert.Equal(t, 40.0, radio.sent[2].Value)
	assert.Equal(t, 0, a.Samples())
}

func TestFlushAndSend_EmptyWindowSkip(t *testing.T) {
	a := withPulse()
	radio := &recordingRadio{}

	err := a.FlushAndSend(context.Background(), radio)
	assert.ErrorIs(t, err, ErrEmptyPulseWindow)
	assert.Equal(t, []string{"accel", "vol"}, radio.names())
}

func TestFlushAndSend_EmptyWindowSentinel(t *testing.T) {
	a := New(&sensor.Fixed{}, Config{EmptyWindow: EmptyWindowSentinel, Sentinel: -1})
	radio := &recordingRadio{}

	require.NoError(t, a.FlushAndSend(context.Background(), radio))
	assert.Equal(t, []string{"accel", "pulse", "vol"}, radio.names())
	assert.Equal(t, -1.0, radio.sent[1].Value)
}

func TestFlushAndSend_SendFailureStillResets(t *testing.T) {
	a := withPulse(1, 0)
	sampleAll(t, a, 2)

	boom := errors.New("radio off")
	radio := &recordingRadio{fail: map[string]error{"accel": boom}}

	err := a.FlushAndSend(context.Background(), radio)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"pulse", "vol"}, radio.names(), "later sends still attempted")
	assert.Equal(t, 0, a.Samples())
}

func TestFlushAndSend_WindowStartsFresh(t *testing.T) {
	a := withPulse(1, 1, 0, 0)
	radio := &recordingRadio{}

	sampleAll(t, a, 2)
	require.NoError(t, a.FlushAndSend(context.Background(), radio))
	sampleAll(t, a, 2)
	require.NoError(t, a.FlushAndSend(context.Background(), radio))

	assert.Equal(t, 300.0, radio.sent[1].Value)
	assert.Equal(t, 0.0, radio.sent[4].Value)
}

type failingSensors struct{ sensor.Fixed }

func (failingSensors) SoundLevel() (float64, error)     { return 0, errors.New("mic") }
func (failingSensors) DigitalRead(int) (float64, error) { return 0, errors.New("pin") }

func TestRecord_SensorErrors(t *testing.T) {
	a := New(&failingSensors{}, DefaultConfig())
	assert.Error(t, a.RecordVolume())
	assert.Error(t, a.RecordPulseSample())
	assert.Equal(t, 0, a.Samples())
	assert.NoError(t, a.RecordAccel())
}

func TestParseEmptyWindowPolicy(t *testing.T) {
	p, err := ParseEmptyWindowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, EmptyWindowSkip, p)

	p, err = ParseEmptyWindowPolicy("sentinel")
	require.NoError(t, err)
	assert.Equal(t, EmptyWindowSentinel, p)

	_, err = ParseEmptyWindowPolicy("nan")
	assert.Error(t, err)
}
