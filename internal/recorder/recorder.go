// Package recorder writes and replays radio traces: NDJSON files of the
// values a base node received and the moments it stored a row.
package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/snore/snore-cli/internal/models"
)

// Recorder appends trace entries to an NDJSON file
type Recorder struct {
	file    *os.File
	writer  *bufio.Writer
	mu      sync.Mutex
	entries int
	now     func() time.Time
}

// NewRecorder creates (or truncates) filename
func NewRecorder(filename string) (*Recorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}

	return &Recorder{
		file:   file,
		writer: bufio.NewWriter(file),
		now:    time.Now,
	}, nil
}

// RecordValue writes a received message
func (r *Recorder) RecordValue(msg models.Message) error {
	return r.Record(models.ValueEntry(msg, r.now()))
}

// RecordStore writes a store marker
func (r *Recorder) RecordStore() error {
	return r.Record(models.StoreEntry(r.now()))
}

// Record writes one entry followed by a newline
func (r *Recorder) Record(entry models.TraceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode trace entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := r.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	r.entries++
	return nil
}

// Entries returns how many entries were written
func (r *Recorder) Entries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries
}

// Close flushes and closes the recorder
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writer.Flush(); err != nil {
		r.file.Close()
		return fmt.Errorf("failed to flush buffer: %w", err)
	}

	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}
