/*Package sipm holds the closed-loop controllers for the SiPM detector
under test: one holds the electrical power delivered to the SiPM
front-end at a target wattage, the other holds the SiPM temperature at a
target by driving a thermoelectric cooler.

Both controllers own a Supply (the source-measure unit actually wired to
the load), a PID loop, and a command voltage carried across iterations.
They are driven synchronously: the caller invokes Step once per sample
interval from its own loop.  Neither controller is safe for concurrent
use; each instance expects exactly one caller.
*/
package sipm

import "fmt"

// Supply is the capability set the controllers need from a power supply.
// Both Keithley wrappers in package keithley satisfy it.
type Supply interface {
	// MeasureIV returns the latest measured output current and voltage.
	MeasureIV() (amps, volts float64, err error)

	// SetVoltage commands the programmable output voltage.
	SetVoltage(v float64) error

	// SetOutput powers the output stage on or off.
	SetOutput(on bool) error

	// GetOutput reports the actual power state of the output stage.
	GetOutput() (bool, error)
}

// State is the power state of a controller's supply.
type State int

const (
	// Off means the supply's output stage is not driving the load.
	Off State = iota

	// On means the supply's output stage is driving the load.
	On
)

func (s State) String() string {
	if s == On {
		return "ON"
	}
	return "OFF"
}

func stateOf(on bool) State {
	if on {
		return On
	}
	return Off
}

// RangeError reports a value outside its configured safety range.  It is
// returned at construction time when the target is unsafe; computed
// command voltages are clamped rather than rejected and never produce one.
type RangeError struct {
	What     string
	Value    float64
	Min, Max float64
}

func (e RangeError) Error() string {
	return fmt.Sprintf("%s %g outside allowed range [%g, %g]", e.What, e.Value, e.Min, e.Max)
}

// PowerSequenceError reports a supply that did not reach the commanded
// power state after the settle delay.  The controller's state reflects
// what the device actually reported; the caller decides whether to retry.
type PowerSequenceError struct {
	Want, Got State
}

func (e PowerSequenceError) Error() string {
	return fmt.Sprintf("supply did not reach state %s after settle delay, still %s", e.Want, e.Got)
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
