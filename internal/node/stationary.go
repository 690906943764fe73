// Package node wires the collaborators of each device into its controller:
// the stationary base node that logs rows and the wristwatch that samples
// and sends.
package node

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/daylog"
	"github.com/snore/snore-cli/internal/device"
	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/staging"
	"github.com/snore/snore-cli/internal/storage"
	"github.com/snore/snore-cli/internal/transport"
)

// ErrNotInitialised is returned by StoreData before Initialise succeeded
var ErrNotInitialised = errors.New("stationary node not initialised")

// Tracer receives every value the base node accepts and every store
type Tracer interface {
	RecordValue(msg models.Message) error
	RecordStore() error
}

// StationaryConfig tunes the base node
type StationaryConfig struct {
	Policy staging.Policy
	// StoreInterval stores a row on a timer while Run is active
	StoreInterval time.Duration
	// AutoStore stores a row after every received vol
	AutoStore bool
}

// Stationary is the base node controller. ReceiveData and StoreData are
// serialized, so a store never sees half of a receive.
type Stationary struct {
	cfg       StationaryConfig
	medium    storage.Medium
	resolver  *daylog.Resolver
	store     *daylog.Store
	identity  device.Identity
	indicator device.Indicator
	logger    *zap.Logger

	mu      sync.Mutex
	record  *staging.Record
	day     int
	rows    int
	tracer  Tracer
	rowSink chan<- models.StoredRow
	now     func() time.Time
}

func NewStationary(cfg StationaryConfig, medium storage.Medium, identity device.Identity, indicator device.Indicator, logger *zap.Logger) *Stationary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stationary{
		cfg:       cfg,
		medium:    medium,
		resolver:  daylog.NewResolver(medium),
		store:     daylog.NewStore(medium),
		identity:  identity,
		indicator: indicator,
		logger:    logger,
		record:    staging.NewRecord(cfg.Policy),
		now:       time.Now,
	}
}

// SetTracer records accepted values and stores to t
func (s *Stationary) SetTracer(t Tracer) {
	s.mu.Lock()
	s.tracer = t
	s.mu.Unlock()
}

// SetRowSink publishes every stored row to ch. A full channel drops the row.
func (s *Stationary) SetRowSink(ch chan<- models.StoredRow) {
	s.mu.Lock()
	s.rowSink = ch
	s.mu.Unlock()
}

// Initialise picks the next unused day, creates its log with only the
// header, writes the board serial to id.txt and clears the indicator
func (s *Stationary) Initialise(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.resolver.Resolve()
	if err != nil {
		return fmt.Errorf("failed to resolve day: %w", err)
	}
	if err := s.store.Open(day); err != nil {
		return err
	}

	serial := strconv.FormatUint(uint64(s.identity.SerialNumber()), 10)
	if err := s.medium.Overwrite(daylog.IdentityFile, serial); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	if err := s.indicator.Clear(); err != nil {
		return fmt.Errorf("failed to clear indicator: %w", err)
	}

	s.day = day
	s.rows = 0
	s.logger.Info("day log opened",
		zap.Int("day", day),
		zap.String("file", daylog.FileName(day)),
		zap.String("serial", serial))
	return nil
}

// ReceiveData stages one value. Unknown names are ignored and reported as false.
func (s *Stationary) ReceiveData(name string, value float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receive(models.Message{Name: name, Value: value})
}

func (s *Stationary) receive(msg models.Message) bool {
	if !s.record.Receive(msg.Name, msg.Value) {
		s.logger.Debug("ignoring unknown value", zap.String("name", msg.Name))
		return false
	}
	if s.tracer != nil {
		if err := s.tracer.RecordValue(msg); err != nil {
			s.logger.Warn("trace write failed", zap.Error(err))
		}
	}
	return true
}

// HandleMessage is the radio receive handler. With AutoStore set a row is
// stored after each vol.
func (s *Stationary) HandleMessage(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.receive(msg) {
		return
	}
	if s.cfg.AutoStore && msg.Name == models.MetricVol {
		if _, err := s.storeLocked(); err != nil {
			s.logger.Error("store failed", zap.Error(err))
		}
	}
}

// StoreData appends the staged values to today's log as one row
func (s *Stationary) StoreData() (models.StoredRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked()
}

func (s *Stationary) storeLocked() (models.StoredRow, error) {
	if s.day == 0 {
		return models.StoredRow{}, ErrNotInitialised
	}

	row := s.record.Snapshot()
	if err := s.store.AppendRow(s.day, row); err != nil {
		return models.StoredRow{}, err
	}
	s.rows++

	stored := models.StoredRow{
		Day: s.day,
		Row: row,
		At:  s.now().UTC().Format(time.RFC3339Nano),
	}
	if s.tracer != nil {
		if err := s.tracer.RecordStore(); err != nil {
			s.logger.Warn("trace write failed", zap.Error(err))
		}
	}
	if s.rowSink != nil {
		select {
		case s.rowSink <- stored:
		default:
			s.logger.Debug("row sink full, dropping row", zap.Int("row", s.rows))
		}
	}
	s.logger.Debug("row stored", zap.Int("day", s.day), zap.String("row", row.CSVLine()))
	return stored, nil
}

// Day returns the open day index, or 0 before Initialise
func (s *Stationary) Day() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

// Rows returns how many rows were stored since Initialise
func (s *Stationary) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Staged returns the staged row without taking a snapshot
func (s *Stationary) Staged() models.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Peek()
}

// Run attaches to radio and, with a StoreInterval, stores on a timer until
// ctx is cancelled
func (s *Stationary) Run(ctx context.Context, radio transport.Radio) error {
	radio.OnReceive(s.HandleMessage)

	if s.cfg.StoreInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.cfg.StoreInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.StoreData(); err != nil {
				return err
			}
		}
	}
}
