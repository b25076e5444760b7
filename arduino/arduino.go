// Package arduino reads the air temperature monitor, an Arduino on USB
// serial that answers "1" with one whitespace-separated sample line.
package arduino

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Reading holds one sample from the monitor.  The board reports seven
// values; the last is the air temperature.
type Reading struct {
	// Fields holds every reported value in board order
	Fields []float64 `json:"fields"`

	// AirTemp is the air temperature in Celsius
	AirTemp float64 `json:"airTemp"`
}

// ParseReading converts a raw sample line to a Reading.  The board's
// temperature register is an int16 scaled by 100; a wrapped negative
// reads back offset by 3276.80 and is undone here.
func ParseReading(line string) (Reading, error) {
	pieces := strings.Fields(strings.TrimSpace(line))
	if len(pieces) != 7 {
		return Reading{}, fmt.Errorf("arduino: malformed sample %q, want 7 fields", line)
	}
	numeric := make([]float64, 7)
	for i, v := range pieces {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Reading{}, err
		}
		numeric[i] = f
	}
	airTemp := numeric[6]
	if airTemp < 0 {
		airTemp = -airTemp - 3276.80
		numeric[6] = airTemp
	}
	return Reading{Fields: numeric, AirTemp: airTemp}, nil
}

// Sensor reads the monitor over serial.
type Sensor struct {
	addr string
}

// New returns a Sensor on the serial device at addr, e.g. /dev/ttyACM0.
func New(addr string) *Sensor {
	return &Sensor{addr: addr}
}

// Read polls the board once and returns the sample.  The board is slow
// to answer, so the port is opened per call with a generous timeout.
func (s *Sensor) Read() (Reading, error) {
	conf := &serial.Config{
		Name:        s.addr,
		Baud:        115200,
		ReadTimeout: 2 * time.Second}
	conn, err := serial.OpenPort(conf)
	if err != nil {
		return Reading{}, errors.Wrap(err, "arduino: opening port")
	}
	defer conn.Close()

	_, err = conn.Write([]byte("1\r\n"))
	if err != nil {
		return Reading{}, errors.Wrap(err, "arduino: writing poll command")
	}
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return Reading{}, errors.Wrap(err, "arduino: reading sample")
	}
	return ParseReading(line)
}

// ReadAirTemp polls the board and returns only the air temperature in
// Celsius, the shape the temperature control loop consumes.
func (s *Sensor) ReadAirTemp() (float64, error) {
	r, err := s.Read()
	if err != nil {
		return 0, err
	}
	return r.AirTemp, nil
}
