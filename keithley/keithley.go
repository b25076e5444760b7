/*Package keithley provides wrappers for the Keithley source-measure units
in the test stand: a model 2450 driving the thermoelectric cooler over
TCP/IP, and a model 2231A powering the SiPM front-end over RS-232.

Both expose measure / source-voltage / output-state capabilities and
satisfy sipm.Supply.
*/
package keithley

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/btcardwell/Lab5015Utils/comm"
	"github.com/btcardwell/Lab5015Utils/scpi"
)

// parseCSVFloats splits a comma separated response into floats.
func parseCSVFloats(resp string, n int) ([]float64, error) {
	pieces := strings.Split(strings.TrimSpace(resp), ",")
	if len(pieces) < n {
		return nil, fmt.Errorf("keithley: expected %d fields in response %q", n, resp)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(pieces[i]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "keithley: field %d of response %q", i, resp)
		}
		out[i] = f
	}
	return out, nil
}

// K2450 is a model 2450 SourceMeter reached over TCP/IP.
type K2450 struct {
	s *scpi.SCPI

	// buffer is the reading buffer used for measurements.
	buffer string
}

// New2450 returns a K2450 at the given TCP address.
func New2450(addr string) *K2450 {
	pool := comm.NewPool(1, time.Minute, comm.BackingOffTCPConnMaker(addr, 3*time.Second))
	return &K2450{s: scpi.New(pool), buffer: `"defbuffer1"`}
}

// ClearBuffer clears the reading buffer and prepares for measurement.
// Call once after connecting.
func (k *K2450) ClearBuffer() error {
	return k.s.Write(":TRAC:CLE", k.buffer)
}

// MeasureVoltage triggers a voltage reading and returns the instrument
// timestamp in seconds and the voltage.
func (k *K2450) MeasureVoltage() (sec, volts float64, err error) {
	resp, err := k.s.ReadString(":MEASure:VOLT?", k.buffer+",", "SEC,", "READ")
	if err != nil {
		return 0, 0, err
	}
	f, err := parseCSVFloats(resp, 2)
	if err != nil {
		return 0, 0, err
	}
	return f[0], f[1], nil
}

// MeasureCurrent triggers a current reading and returns the instrument
// timestamp in seconds and the current.
func (k *K2450) MeasureCurrent() (sec, amps float64, err error) {
	resp, err := k.s.ReadString(":MEASure:CURR?", k.buffer+",", "SEC,", "READ")
	if err != nil {
		return 0, 0, err
	}
	f, err := parseCSVFloats(resp, 2)
	if err != nil {
		return 0, 0, err
	}
	return f[0], f[1], nil
}

// FetchIV triggers a current reading and fetches timestamp, current and
// source voltage from the buffer.
func (k *K2450) FetchIV() (sec, amps, volts float64, err error) {
	if _, err = k.s.ReadString(":MEASure:CURR?", k.buffer+",", "READ"); err != nil {
		return 0, 0, 0, err
	}
	resp, err := k.s.ReadString("FETCh?", k.buffer+",", "SEC,READ,SOURCE")
	if err != nil {
		return 0, 0, 0, err
	}
	f, err := parseCSVFloats(resp, 3)
	if err != nil {
		return 0, 0, 0, err
	}
	return f[0], f[1], f[2], nil
}

// MeasureIV returns the latest current and voltage readings.
func (k *K2450) MeasureIV() (amps, volts float64, err error) {
	_, i, v, err := k.FetchIV()
	return i, v, err
}

// SetVoltage sets the source voltage.
func (k *K2450) SetVoltage(v float64) error {
	return k.s.Write("SOUR:VOLT", strconv.FormatFloat(v, 'g', -1, 64))
}

// SetOutput turns the output stage on or off.
func (k *K2450) SetOutput(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return k.s.Write("OUTP", v)
}

// GetOutput reports whether the output stage is on.
func (k *K2450) GetOutput() (bool, error) {
	return k.s.ReadBool("OUTP?")
}

// SetFourWire enables or disables 4-wire (remote sense) measurement.
func (k *K2450) SetFourWire(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return k.s.Write("SENS:CURR:RSEN", v)
}

// Raw passes a raw command or query to the instrument.
func (k *K2450) Raw(cmd string) (string, error) {
	return k.s.Raw(cmd)
}

// K2231A is a model 2231A triple-channel power supply reached over RS-232.
type K2231A struct {
	s *scpi.SCPI

	// channel is the output channel this instance drives, e.g. "CH1".
	channel string
}

func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        9600,
		ReadTimeout: 3 * time.Second}
}

// New2231A returns a K2231A on the serial device at addr, driving the
// given channel ("CH1" if empty).
func New2231A(addr, channel string) *K2231A {
	if channel == "" {
		channel = "CH1"
	}
	pool := comm.NewPool(1, time.Hour, comm.SerialConnMaker(makeSerConf(addr)))
	return &K2231A{s: scpi.New(pool), channel: channel}
}

// Initialize puts the supply in remote mode and selects the channel.
// Call once after connecting.
func (k *K2231A) Initialize() error {
	if err := k.s.Write("SYSTem:REMote"); err != nil {
		return err
	}
	return k.s.Write("INST:SEL", k.channel)
}

// MeasureVoltage returns the measured output voltage.
func (k *K2231A) MeasureVoltage() (float64, error) {
	return k.s.ReadFloat("MEAS:VOLT?")
}

// MeasureCurrent returns the measured output current.
func (k *K2231A) MeasureCurrent() (float64, error) {
	return k.s.ReadFloat("MEAS:CURR?")
}

// MeasureIV returns the measured output current and voltage.
func (k *K2231A) MeasureIV() (amps, volts float64, err error) {
	amps, err = k.MeasureCurrent()
	if err != nil {
		return 0, 0, err
	}
	volts, err = k.MeasureVoltage()
	return amps, volts, err
}

// SetVoltage sets the channel's output voltage.
func (k *K2231A) SetVoltage(v float64) error {
	return k.s.Write("APPL", k.channel+","+strconv.FormatFloat(v, 'g', -1, 64))
}

// SetOutput turns the output stage on or off.
func (k *K2231A) SetOutput(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return k.s.Write("OUTP", v)
}

// GetOutput reports whether the output stage is on.
func (k *K2231A) GetOutput() (bool, error) {
	return k.s.ReadBool("OUTP?")
}

// Raw passes a raw command or query to the instrument.
func (k *K2231A) Raw(cmd string) (string, error) {
	return k.s.Raw(cmd)
}
