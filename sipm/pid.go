package sipm

import (
	"time"

	"github.com/felixge/pidctrl"
)

// pidLoop wraps a pidctrl.PIDController with the bookkeeping the
// controllers need: elapsed-time tracking between externally paced calls,
// and a mirror of the P/I/D terms for the verbose trace (the library does
// not expose its internals).
//
// The first call is fed a zero dt, so the derivative term is zero and the
// correction is purely proportional; real intervals apply from the second
// call on.
type pidLoop struct {
	ctl        *pidctrl.PIDController
	kp, ki, kd float64
	setpoint   float64
	lo, hi     float64

	last   time.Time
	prev   float64
	primed bool

	// terms of the most recent correction, for tracing
	pTerm, iTerm, dTerm float64
}

func newPIDLoop(kp, ki, kd, setpoint, lo, hi float64) *pidLoop {
	ctl := pidctrl.NewPIDController(kp, ki, kd)
	ctl.Set(setpoint)
	ctl.SetOutputLimits(lo, hi)
	return &pidLoop{ctl: ctl, kp: kp, ki: ki, kd: kd, setpoint: setpoint, lo: lo, hi: hi}
}

// step feeds one process-variable sample to the controller and returns
// the bounded correction.
func (l *pidLoop) step(value float64) float64 {
	now := time.Now()
	var dt time.Duration
	if l.primed {
		dt = now.Sub(l.last)
	}
	out := l.ctl.UpdateDuration(value, dt)

	// mirror the library's term arithmetic for the trace
	err := l.setpoint - value
	l.pTerm = l.kp * err
	l.iTerm = clamp(l.iTerm+l.ki*err*dt.Seconds(), l.lo, l.hi)
	if l.primed && dt > 0 {
		l.dTerm = -l.kd * (value - l.prev) / dt.Seconds()
	} else {
		l.dTerm = 0
	}

	l.last = now
	l.prev = value
	l.primed = true
	return out
}

// components returns the P, I and D contributions of the most recent step.
func (l *pidLoop) components() (p, i, d float64) {
	return l.pTerm, l.iTerm, l.dTerm
}
