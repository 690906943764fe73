package models

import (
	"fmt"
	"time"
)

// Trace entry kinds
const (
	TraceValue = "value"
	TraceStore = "store"
)

// TraceEntry is one line of a radio trace: a value received by the base
// node or a store of the staged row
type TraceEntry struct {
	At      string   `json:"ts"`
	Kind    string   `json:"kind"`
	Message *Message `json:"msg,omitempty"`
}

// ValueEntry records msg as received at t
func ValueEntry(msg Message, t time.Time) TraceEntry {
	return TraceEntry{At: t.UTC().Format(time.RFC3339Nano), Kind: TraceValue, Message: &msg}
}

// StoreEntry records a store at t
func StoreEntry(t time.Time) TraceEntry {
	return TraceEntry{At: t.UTC().Format(time.RFC3339Nano), Kind: TraceStore}
}

// Time parses the entry timestamp
func (e TraceEntry) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.At)
}

// Validate checks the entry kind and that value entries carry a message
func (e TraceEntry) Validate() error {
	switch e.Kind {
	case TraceValue:
		if e.Message == nil {
			return fmt.Errorf("value entry without message")
		}
	case TraceStore:
	default:
		return fmt.Errorf("unknown trace entry kind %q", e.Kind)
	}
	return nil
}
