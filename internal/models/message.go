package models

import "time"

// Metric names carried over the radio and staged on the base node
const (
	MetricAccel = "accel"
	MetricPulse = "pulse"
	MetricVol   = "vol"
)

// Metrics lists the metric names in send and column order
var Metrics = []string{MetricAccel, MetricPulse, MetricVol}

// Message is one named value sent between the two nodes
type Message struct {
	Group  int     `json:"group"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Serial uint32  `json:"serial,omitempty"` // sender device serial
	SentAt string  `json:"ts,omitempty"`
}

// NewMessage creates a Message stamped with the current time
func NewMessage(group int, name string, value float64, serial uint32) Message {
	return Message{
		Group:  group,
		Name:   name,
		Value:  value,
		Serial: serial,
		SentAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// IsKnownMetric reports whether name is one of accel, pulse or vol
func IsKnownMetric(name string) bool {
	for _, m := range Metrics {
		if m == name {
			return true
		}
	}
	return false
}
