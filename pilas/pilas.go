/*Package pilas controls an Advanced Laser Diode Systems PiLas pulsed
diode laser.

The laser speaks a line-oriented text protocol over RS-232 ("tune?",
"f=1000000", ...).  Every command, including sets, produces one reply
line; replies to reads are free-form human text ("tune:  30 %"), so read
methods return the trimmed reply for the caller to interpret.
*/
package pilas

import (
	"fmt"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/btcardwell/Lab5015Utils/comm"
	"github.com/btcardwell/Lab5015Utils/scpi"
)

// TriggerSource enumerates the laser's pulse trigger sources.
type TriggerSource int

const (
	// TriggerInternal pulses on the internal oscillator.
	TriggerInternal TriggerSource = iota

	// TriggerExternalAdjustable pulses on the adjustable external input.
	TriggerExternalAdjustable

	// TriggerTTL pulses on the TTL input.
	TriggerTTL
)

// ParseTriggerSource converts a human label to a TriggerSource.
func ParseTriggerSource(s string) (TriggerSource, error) {
	switch strings.ToLower(s) {
	case "internal":
		return TriggerInternal, nil
	case "external", "external-adjustable":
		return TriggerExternalAdjustable, nil
	case "ttl":
		return TriggerTTL, nil
	}
	return 0, fmt.Errorf("pilas: unknown trigger source %q", s)
}

func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        19200,
		ReadTimeout: 3 * time.Second}
}

// Laser talks to a PiLas laser head controller.
type Laser struct {
	s *scpi.SCPI
}

// New returns a Laser on the serial device at addr.
func New(addr string) *Laser {
	pool := comm.NewPool(1, time.Hour, comm.SerialConnMaker(makeSerConf(addr)))
	return &Laser{s: scpi.New(pool)}
}

// Tune returns the laser tune reply in percent of maximum pulse energy.
func (l *Laser) Tune() (string, error) {
	return l.s.ReadString("tune?")
}

// Frequency returns the pulse frequency reply in Hz.
func (l *Laser) Frequency() (string, error) {
	return l.s.ReadString("f?")
}

// Emitting reports whether the laser diode is enabled.
func (l *Laser) Emitting() (bool, error) {
	resp, err := l.s.ReadString("ld?")
	if err != nil {
		return false, err
	}
	return strings.Contains(resp, "1") || strings.Contains(strings.ToLower(resp), "on"), nil
}

// set sends a command; the laser answers every set with a reply line,
// which is consumed and discarded.
func (l *Laser) set(cmd string) error {
	_, err := l.s.ReadString(cmd)
	return err
}

// SetEmitting enables or disables the laser diode.
func (l *Laser) SetEmitting(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return l.set(fmt.Sprintf("ld=%d", v))
}

// SetTune sets the laser tune in percent.
func (l *Laser) SetTune(pct float64) error {
	return l.set(fmt.Sprintf("tune=%g", pct))
}

// SetFrequency sets the pulse frequency in Hz.
func (l *Laser) SetFrequency(hz int) error {
	return l.set(fmt.Sprintf("f=%d", hz))
}

// SetTriggerSource selects the pulse trigger source.
func (l *Laser) SetTriggerSource(ts TriggerSource) error {
	if ts < TriggerInternal || ts > TriggerTTL {
		return fmt.Errorf("pilas: invalid trigger source %d", ts)
	}
	return l.set(fmt.Sprintf("ts=%d", ts))
}
