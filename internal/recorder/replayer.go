package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/snore/snore-cli/internal/models"
)

// Replayer reads trace entries back from an NDJSON file
type Replayer struct {
	filename string
	speed    float64
}

// NewReplayer creates a replayer. speed scales the recorded gaps between
// entries; zero or less replays without waiting.
func NewReplayer(filename string, speed float64) *Replayer {
	return &Replayer{
		filename: filename,
		speed:    speed,
	}
}

// Replay passes every entry to fn in file order, honouring recorded timing
// when speed is positive. It stops at the first error from fn.
func (r *Replayer) Replay(ctx context.Context, fn func(models.TraceEntry) error) error {
	file, err := os.Open(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var last time.Time
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var entry models.TraceEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return fmt.Errorf("failed to parse entry at line %d: %w", lineNum, err)
		}
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("invalid entry at line %d: %w", lineNum, err)
		}

		if r.speed > 0 {
			at, err := entry.Time()
			if err != nil {
				return fmt.Errorf("failed to parse timestamp at line %d: %w", lineNum, err)
			}
			if !last.IsZero() {
				if delay := time.Duration(float64(at.Sub(last)) / r.speed); delay > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(delay):
					}
				}
			}
			last = at
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	return nil
}

// Count returns the number of entries of each kind in the trace
func (r *Replayer) Count() (values, stores int, err error) {
	err = NewReplayer(r.filename, 0).Replay(context.Background(), func(e models.TraceEntry) error {
		if e.Kind == models.TraceStore {
			stores++
		} else {
			values++
		}
		return nil
	})
	return values, stores, err
}
