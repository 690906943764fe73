package transport

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/models"
)

// Loopback is an in-process radio. Values sent on one end are delivered
// synchronously to the handler of the other end.
type Loopback struct {
	link
	peer *Loopback

	// Drop, when set, decides per message whether it is lost in transit
	Drop func(msg models.Message) bool

	sendMu sync.Mutex
	sent   int
	closed bool
}

// NewLoopbackPair returns two connected ends on the same group
func NewLoopbackPair(group int, serialA, serialB uint32, logger *zap.Logger) (*Loopback, *Loopback) {
	a := &Loopback{link: link{group: group, serial: serialA, logger: orNop(logger)}}
	b := &Loopback{link: link{group: group, serial: serialB, logger: orNop(logger)}}
	a.peer, b.peer = b, a
	return a, b
}

func (l *Loopback) SendValue(ctx context.Context, name string, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.sendMu.Lock()
	if l.closed {
		l.sendMu.Unlock()
		return errors.New("loopback radio closed")
	}
	l.sent++
	l.sendMu.Unlock()

	msg := l.message(name, value)
	if l.Drop != nil && l.Drop(msg) {
		return nil
	}
	l.peer.deliver(msg)
	return nil
}

// Sent returns the number of values sent, including dropped ones
func (l *Loopback) Sent() int {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return l.sent
}

func (l *Loopback) Close() error {
	l.sendMu.Lock()
	l.closed = true
	l.sendMu.Unlock()
	return nil
}
