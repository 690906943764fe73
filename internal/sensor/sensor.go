// Package sensor defines the wristwatch's hardware reads and a simulated
// implementation driven by sleep scenarios.
package sensor

import "fmt"

// Axis selects one accelerometer axis
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// PulsePin is the digital pin the pulse sensor is wired to
const PulsePin = 0

// Sensors are the wristwatch hardware reads
type Sensors interface {
	AccelerationAxis(axis Axis) (float64, error)
	SoundLevel() (float64, error)
	DigitalRead(pin int) (float64, error)
}

// Fixed returns the same readings every time
type Fixed struct {
	Accel [3]float64
	Sound float64
	Pins  map[int]float64
}

func (f *Fixed) AccelerationAxis(axis Axis) (float64, error) {
	if axis < AxisX || axis > AxisZ {
		return 0, fmt.Errorf("unknown axis %v", axis)
	}
	return f.Accel[axis], nil
}

func (f *Fixed) SoundLevel() (float64, error) {
	return f.Sound, nil
}

func (f *Fixed) DigitalRead(pin int) (float64, error) {
	return f.Pins[pin], nil
}

// Sequence replays pulse pin readings in order, then reads low
type Sequence struct {
	Fixed
	Pulse []float64
	next  int
}

func (s *Sequence) DigitalRead(pin int) (float64, error) {
	if pin != PulsePin || s.next >= len(s.Pulse) {
		return s.Fixed.DigitalRead(pin)
	}
	v := s.Pulse[s.next]
	s.next++
	return v, nil
}
