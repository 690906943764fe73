package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowCSVLine(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want string
	}{
		{"all set", Row{Accel: Value(9.8), Pulse: Value(150), Vol: Value(40)}, "9.8,150,40"},
		{"pulse unset", Row{Accel: Value(5), Vol: Value(3)}, "5,,3"},
		{"nothing set", Row{}, ",,"},
		{"negative sentinel", Row{Accel: Value(1024), Pulse: Value(-1), Vol: Value(0)}, "1024,-1,0"},
		{"fraction", Row{Accel: Value(1.25), Pulse: Value(37.5), Vol: Value(0.5)}, "1.25,37.5,0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.row.CSVLine())
		})
	}
}

func TestCSVHeader(t *testing.T) {
	assert.Equal(t, "accel,pulse,vol", CSVHeader)
}

func TestIsKnownMetric(t *testing.T) {
	for _, name := range Metrics {
		assert.True(t, IsKnownMetric(name), name)
	}
	assert.False(t, IsKnownMetric("temp"))
	assert.False(t, IsKnownMetric("Accel"))
	assert.False(t, IsKnownMetric(""))
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(7, MetricPulse, 150, 42)

	assert.Equal(t, 7, msg.Group)
	assert.Equal(t, MetricPulse, msg.Name)
	assert.Equal(t, 150.0, msg.Value)
	assert.Equal(t, uint32(42), msg.Serial)
	assert.NotEmpty(t, msg.SentAt)
}
