// Package device holds the small board collaborators a node uses at start:
// its serial number and its status indicator.
package device

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity reports the board's serial number
type Identity interface {
	SerialNumber() uint32
}

// StaticIdentity is a fixed serial number
type StaticIdentity uint32

func (s StaticIdentity) SerialNumber() uint32 {
	return uint32(s)
}

// NewRandomIdentity returns an identity with a serial derived from a fresh
// UUID, for simulated boards
func NewRandomIdentity() StaticIdentity {
	return StaticIdentity(uuid.New().ID())
}

// Indicator is the board's visual status output
type Indicator interface {
	Clear() error
}

// LogIndicator stands in for an LED matrix by logging state changes
type LogIndicator struct {
	logger *zap.Logger
	clears int
}

func NewLogIndicator(logger *zap.Logger) *LogIndicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogIndicator{logger: logger}
}

func (l *LogIndicator) Clear() error {
	l.clears++
	l.logger.Debug("indicator cleared", zap.Int("count", l.clears))
	return nil
}

// Clears returns how many times Clear was called
func (l *LogIndicator) Clears() int {
	return l.clears
}
