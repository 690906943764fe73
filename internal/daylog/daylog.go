// Package daylog names, resolves and writes the per-day CSV logs kept by the
// stationary node.
//
// The day index is never stored. It is recovered on every start by probing
// the medium for 01.csv, 02.csv, ... and taking the first name that is
// missing, so a power cycle always opens a fresh file even within the same
// calendar day, and a deleted file is reused on the next start.
package daylog

import (
	"fmt"
	"strconv"

	"github.com/snore/snore-cli/internal/models"
	"github.com/snore/snore-cli/internal/storage"
)

// IdentityFile holds the base node's serial number
const IdentityFile = "id.txt"

// FormatDay pads single-digit days to two digits. Days of 10 and above are
// printed as-is, so day 100 is "100".
func FormatDay(day int) string {
	s := strconv.Itoa(day)
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// FileName returns the log file name for a day, e.g. "07.csv"
func FileName(day int) string {
	return FormatDay(day) + ".csv"
}

// Resolver finds the next unused day index
type Resolver struct {
	medium storage.Medium
}

func NewResolver(medium storage.Medium) *Resolver {
	return &Resolver{medium: medium}
}

// Resolve returns the smallest day, counting up from 1, whose file is absent.
// A failing existence check stops the probe and is returned.
func (r *Resolver) Resolve() (int, error) {
	day := 1
	for {
		exists, err := r.medium.Exists(FileName(day))
		if err != nil {
			return 0, fmt.Errorf("failed to probe day %d: %w", day, err)
		}
		if !exists {
			return day, nil
		}
		day++
	}
}

// Store writes day log files
type Store struct {
	medium storage.Medium
}

func NewStore(medium storage.Medium) *Store {
	return &Store{medium: medium}
}

// Open creates the day's file containing only the header. An existing file
// for the same day is truncated and its rows are lost.
func (s *Store) Open(day int) error {
	if day < 1 {
		return fmt.Errorf("invalid day index %d", day)
	}
	if err := s.medium.Overwrite(FileName(day), models.CSVHeader+"\n"); err != nil {
		return fmt.Errorf("failed to open day log: %w", err)
	}
	return nil
}

// AppendRow appends one row to the day's file
func (s *Store) AppendRow(day int, row models.Row) error {
	if err := s.medium.AppendLine(FileName(day), row.CSVLine()); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}
