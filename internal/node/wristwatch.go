package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/aggregator"
	"github.com/snore/snore-cli/internal/transport"
)

// WristwatchConfig tunes the wearable node's timing
type WristwatchConfig struct {
	Interval            time.Duration
	MeasuresPerInterval int
	Aggregator          aggregator.Config
}

// DefaultWristwatchConfig samples every 200ms and sends every 20 samples
func DefaultWristwatchConfig() WristwatchConfig {
	return WristwatchConfig{
		Interval:            aggregator.IntervalSize * time.Millisecond,
		MeasuresPerInterval: aggregator.BPMeasuresPerInterval,
		Aggregator:          aggregator.DefaultConfig(),
	}
}

// Wristwatch is the wearable node controller
type Wristwatch struct {
	cfg    WristwatchConfig
	agg    *aggregator.Aggregator
	radio  transport.Radio
	logger *zap.Logger

	mu     sync.Mutex
	ticks  int
	cycles int
}

func NewWristwatch(cfg WristwatchConfig, agg *aggregator.Aggregator, radio transport.Radio, logger *zap.Logger) *Wristwatch {
	if cfg.Interval <= 0 {
		cfg.Interval = aggregator.IntervalSize * time.Millisecond
	}
	if cfg.MeasuresPerInterval <= 0 {
		cfg.MeasuresPerInterval = aggregator.BPMeasuresPerInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wristwatch{cfg: cfg, agg: agg, radio: radio, logger: logger}
}

func (w *Wristwatch) RecordAccel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agg.RecordAccel()
}

func (w *Wristwatch) RecordVol() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agg.RecordVolume()
}

func (w *Wristwatch) RecordBP() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agg.RecordPulseSample()
}

// SendData sends accel, pulse and vol and starts a new pulse window
func (w *Wristwatch) SendData(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cycles++
	return w.agg.FlushAndSend(ctx, w.radio)
}

// Step runs one tick: sample every sensor, then send once every
// MeasuresPerInterval ticks. Sensor errors are logged and the tick goes on.
func (w *Wristwatch) Step(ctx context.Context) error {
	for _, record := range []func() error{w.RecordAccel, w.RecordVol, w.RecordBP} {
		if err := record(); err != nil {
			w.logger.Warn("sensor read failed", zap.Error(err))
		}
	}

	w.mu.Lock()
	w.ticks++
	due := w.ticks%w.cfg.MeasuresPerInterval == 0
	w.mu.Unlock()

	if !due {
		return nil
	}

	err := w.SendData(ctx)
	if errors.Is(err, aggregator.ErrEmptyPulseWindow) {
		w.logger.Warn("pulse not sent", zap.Error(err))
		return nil
	}
	return err
}

// Run ticks every Interval until ctx is cancelled. Send failures are logged
// and never retried; the next cycle sends fresh values.
func (w *Wristwatch) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Step(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Warn("send failed", zap.Error(err))
			}
		}
	}
}

// Cycles returns how many send cycles have run
func (w *Wristwatch) Cycles() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cycles
}
