// Package staging holds the latest received value of each metric on the
// stationary node until it is written out as a row.
package staging

import (
	"fmt"

	"github.com/snore/snore-cli/internal/models"
)

// Policy controls what happens to staged values after a snapshot
type Policy string

const (
	// PolicyRetain keeps every value after a snapshot. A metric that is not
	// re-sent repeats its last value in later rows.
	PolicyRetain Policy = "retain"
	// PolicyReset clears every value after a snapshot. A metric that is not
	// re-sent is written as an empty field.
	PolicyReset Policy = "reset"
)

// ParsePolicy accepts "retain", "reset" or "" (retain)
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyRetain:
		return PolicyRetain, nil
	case PolicyReset:
		return PolicyReset, nil
	}
	return "", fmt.Errorf("unknown staging policy %q (expected retain|reset)", s)
}

// Record is last-write-wins per metric. It is not safe for concurrent use;
// the owning controller serializes access.
type Record struct {
	policy Policy
	row    models.Row
}

// NewRecord creates a Record. Accel and vol start at zero, pulse starts unset.
func NewRecord(policy Policy) *Record {
	if policy == "" {
		policy = PolicyRetain
	}
	return &Record{
		policy: policy,
		row: models.Row{
			Accel: models.Value(0),
			Vol:   models.Value(0),
		},
	}
}

// Policy returns the snapshot policy
func (r *Record) Policy() Policy {
	return r.policy
}

// Receive stores value under name. Unknown names are ignored and reported as false.
func (r *Record) Receive(name string, value float64) bool {
	if !models.IsKnownMetric(name) {
		return false
	}
	switch name {
	case models.MetricAccel:
		r.row.Accel = models.Value(value)
	case models.MetricPulse:
		r.row.Pulse = models.Value(value)
	case models.MetricVol:
		r.row.Vol = models.Value(value)
	}
	return true
}

// Snapshot returns the staged row, clearing it under PolicyReset
func (r *Record) Snapshot() models.Row {
	row := r.row
	if r.policy == PolicyReset {
		r.row = models.Row{}
	}
	return row
}

// Peek returns the staged row without applying the policy
func (r *Record) Peek() models.Row {
	return r.row
}
