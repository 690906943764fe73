package models

import (
	"strconv"
	"strings"
)

// Reading is a staged value that may not have been received yet
type Reading struct {
	Value float64 `json:"value"`
	Set   bool    `json:"set"`
}

// Value returns a set Reading
func Value(v float64) Reading {
	return Reading{Value: v, Set: true}
}

// String renders the reading for a CSV field. Unset readings render empty.
func (r Reading) String() string {
	if !r.Set {
		return ""
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// Row is one line of a day log
type Row struct {
	Accel Reading `json:"accel"`
	Pulse Reading `json:"pulse"`
	Vol   Reading `json:"vol"`
}

// CSVHeader is the first line of every day log
var CSVHeader = strings.Join(Metrics, ",")

// CSVLine renders the row without a line terminator
func (r Row) CSVLine() string {
	return strings.Join([]string{r.Accel.String(), r.Pulse.String(), r.Vol.String()}, ",")
}

// StoredRow is a Row that has been appended to a day log
type StoredRow struct {
	Day int    `json:"day"`
	Row Row    `json:"row"`
	At  string `json:"ts"`
}
