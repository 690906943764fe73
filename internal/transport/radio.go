package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/models"
)

// Handler is called once per inbound value
type Handler func(msg models.Message)

// Radio is a named-value broadcast link between the two nodes. Sends are
// best effort: there is no acknowledgement, no retry and nothing ties the
// values of one cycle together.
type Radio interface {
	SendValue(ctx context.Context, name string, value float64) error
	OnReceive(h Handler)
	SetGroup(group int)
	Group() int
	Close() error
}

// link holds the state every Radio shares: group, sender serial and handler
type link struct {
	serial  uint32
	logger  *zap.Logger
	mu      sync.RWMutex
	group   int
	handler Handler
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// SetGroup changes the group this radio sends on and accepts
func (l *link) SetGroup(group int) {
	l.mu.Lock()
	l.group = group
	l.mu.Unlock()
}

// Group returns the current group
func (l *link) Group() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.group
}

// OnReceive replaces the inbound handler
func (l *link) OnReceive(h Handler) {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
}

func (l *link) message(name string, value float64) models.Message {
	return models.NewMessage(l.Group(), name, value, l.serial)
}

// deliver hands msg to the handler unless it belongs to another group or
// is our own transmission echoed back
func (l *link) deliver(msg models.Message) bool {
	l.mu.RLock()
	group, handler := l.group, l.handler
	l.mu.RUnlock()

	if msg.Group != group {
		l.logger.Debug("dropping message from other group",
			zap.Int("group", msg.Group), zap.String("name", msg.Name))
		return false
	}
	if l.serial != 0 && msg.Serial == l.serial {
		return false
	}
	if handler == nil {
		return false
	}
	handler(msg)
	return true
}
