package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/models"
)

// Dispatcher fans the base node's stored rows out to the live feed and
// the simulate row printer. Each consumer gets its own buffer so a slow
// WebSocket client cannot hold up the printer. Rows a full buffer cannot
// take are counted and skipped; they are already in the day log.
type Dispatcher struct {
	source       <-chan models.StoredRow
	subscribers  []chan models.StoredRow
	bufferSize   int
	logger       *zap.Logger
	mu           sync.Mutex
	droppedTotal int64
}

// NewDispatcher reads rows from source and gives each subscriber a buffer
// of bufferSize
func NewDispatcher(source <-chan models.StoredRow, bufferSize int, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		source:     source,
		bufferSize: bufferSize,
		logger:     orNop(logger),
	}
}

// Subscribe returns a channel receiving a copy of every row. Subscribe
// before Run to see every row.
func (d *Dispatcher) Subscribe() <-chan models.StoredRow {
	ch := make(chan models.StoredRow, d.bufferSize)
	d.mu.Lock()
	d.subscribers = append(d.subscribers, ch)
	d.mu.Unlock()
	return ch
}

// GetSubscriberCount returns the number of subscribers
func (d *Dispatcher) GetSubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers)
}

// GetDroppedCount returns how many deliveries were skipped on full buffers
func (d *Dispatcher) GetDroppedCount() int64 {
	return atomic.LoadInt64(&d.droppedTotal)
}

// Run forwards rows until ctx is cancelled or the source closes. Every
// subscriber channel is closed on return so consumers can range over it.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.closeSubscribers()

	for {
		select {
		case <-ctx.Done():
			return
		case row, ok := <-d.source:
			if !ok {
				return
			}
			d.dispatch(ctx, row)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, row models.StoredRow) {
	d.mu.Lock()
	subs := d.subscribers
	d.mu.Unlock()

	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- row:
		case <-ctx.Done():
			return
		default:
			dropped++
			atomic.AddInt64(&d.droppedTotal, 1)
		}
	}

	if dropped > 0 {
		d.logger.Warn("dispatcher dropped row", zap.Int("day", row.Day), zap.Int("subscribers", dropped))
	}
}

func (d *Dispatcher) closeSubscribers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sub := range d.subscribers {
		close(sub)
	}
}
