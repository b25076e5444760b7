/*Package smc talks to the test stand's SMC recirculating chiller.

The chiller exposes its working values as fixed-point holding registers:

	register 0   measured fluid discharge temperature [C]    1 decimal
	register 2   measured fluid discharge pressure    [MPa]  2 decimals
	register 11  fluid temperature setpoint           [C]    1 decimal
	register 12  run state (0 stopped, 1 running)            0 decimals

Two paths reach those registers.  Proxy goes through the network-attached
serial proxy, which accepts "read <reg> <dec>" / "write <reg> <dec> <val>"
text commands and answers one line per command.  Direct speaks Modbus over
a local serial port.  Both satisfy Chiller; pick one with Config.
*/
package smc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
	"golang.org/x/time/rate"

	"github.com/btcardwell/Lab5015Utils/comm"
	"github.com/btcardwell/Lab5015Utils/modbus"
)

const (
	regMeasTemp = 0
	regPressure = 2
	regSetTemp  = 11
	regState    = 12
)

// Chiller is the capability set of the chiller, independent of transport.
type Chiller interface {
	// FluidTemperature returns the measured circulating fluid discharge
	// temperature in Celsius.
	FluidTemperature() (float64, error)

	// TemperatureSetpoint returns the fluid temperature setpoint in
	// Celsius.
	TemperatureSetpoint() (float64, error)

	// SetTemperatureSetpoint sets the fluid temperature setpoint in
	// Celsius.
	SetTemperatureSetpoint(float64) error

	// DischargePressure returns the measured fluid discharge pressure
	// in MPa.
	DischargePressure() (float64, error)

	// Running reports whether the chiller is running.
	Running() (bool, error)

	// SetRunning starts or stops the chiller.
	SetRunning(bool) error
}

// Config selects and parameterizes a chiller connection.
type Config struct {
	// Addr is the TCP address of the serial proxy, or the serial device
	// path when Direct is true.
	Addr string `yaml:"Addr"`

	// Direct selects Modbus over local serial instead of the proxy.
	Direct bool `yaml:"Direct"`

	// Slave is the Modbus slave address, 1 if unset.  Only used when
	// Direct is true.
	Slave byte `yaml:"Slave"`

	// RTU selects RTU framing instead of ASCII.  Only used when Direct
	// is true.
	RTU bool `yaml:"RTU"`
}

// New returns a Chiller for the given configuration.
func New(cfg Config) (Chiller, error) {
	if cfg.Addr == "" {
		return nil, errors.New("smc: no address configured for chiller")
	}
	if cfg.Direct {
		return NewDirect(cfg.Addr, cfg.Slave, cfg.RTU), nil
	}
	return NewProxy(cfg.Addr), nil
}

// Proxy reaches the chiller through the network-attached serial proxy.
type Proxy struct {
	pool *comm.Pool

	// the proxy mangles commands if they arrive faster than the chiller
	// drains them
	limiter *rate.Limiter
}

// NewProxy returns a chiller connection through the proxy at addr.
func NewProxy(addr string) *Proxy {
	maker := comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	return &Proxy{
		pool:    comm.NewPool(1, time.Minute, maker),
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// transact sends one proxy command and returns the single reply line.
func (p *Proxy) transact(cmd string) (string, error) {
	if err := p.limiter.Wait(context.Background()); err != nil {
		return "", err
	}
	conn, err := p.pool.Get()
	if err != nil {
		return "", err
	}
	defer func() { p.pool.ReturnWithError(conn, err) }()
	wrap, err := comm.NewTimeout(comm.NewTerminator(conn, '\n', '\n'), 3*time.Second)
	if err != nil {
		return "", err
	}
	if _, err = wrap.Write([]byte(cmd)); err != nil {
		return "", errors.Wrap(err, "smc proxy write failed")
	}
	buf := make([]byte, 128)
	var n int
	n, err = wrap.Read(buf)
	if err != nil {
		return "", errors.Wrap(err, "smc proxy read failed")
	}
	return strings.TrimSpace(string(buf[:n])), nil
}

func (p *Proxy) readFloat(reg, decimals int) (float64, error) {
	resp, err := p.transact(fmt.Sprintf("read %d %d", reg, decimals))
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
}

func (p *Proxy) write(reg, decimals int, value float64) error {
	_, err := p.transact(fmt.Sprintf("write %d %d %g", reg, decimals, value))
	return err
}

// FluidTemperature returns the measured fluid discharge temperature in C.
func (p *Proxy) FluidTemperature() (float64, error) {
	return p.readFloat(regMeasTemp, 1)
}

// TemperatureSetpoint returns the fluid temperature setpoint in C.
func (p *Proxy) TemperatureSetpoint() (float64, error) {
	return p.readFloat(regSetTemp, 1)
}

// SetTemperatureSetpoint sets the fluid temperature setpoint in C.
func (p *Proxy) SetTemperatureSetpoint(t float64) error {
	return p.write(regSetTemp, 1, t)
}

// DischargePressure returns the measured fluid discharge pressure in MPa.
func (p *Proxy) DischargePressure() (float64, error) {
	return p.readFloat(regPressure, 2)
}

// Running reports whether the chiller is running.
func (p *Proxy) Running() (bool, error) {
	f, err := p.readFloat(regState, 0)
	return f != 0, err
}

// SetRunning starts or stops the chiller.
func (p *Proxy) SetRunning(on bool) error {
	v := 0.
	if on {
		v = 1
	}
	return p.write(regState, 0, v)
}

// Direct reaches the chiller's registers over a local serial port.
type Direct struct {
	client *modbus.Client
}

// makeSerConf makes a new serial.Config with the chiller's parity, baud,
// etc, set.
func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        19200,
		Size:        7,
		Parity:      serial.ParityEven,
		StopBits:    serial.Stop1,
		ReadTimeout: 300 * time.Millisecond}
}

// NewDirect returns a chiller connection over the serial port at addr.
func NewDirect(addr string, slave byte, rtu bool) *Direct {
	if slave == 0 {
		slave = 1
	}
	mode := modbus.ASCII
	if rtu {
		mode = modbus.RTU
	}
	pool := comm.NewPool(1, time.Hour, comm.SerialConnMaker(makeSerConf(addr)))
	return &Direct{client: modbus.NewClient(pool, slave, mode)}
}

// FluidTemperature returns the measured fluid discharge temperature in C.
func (d *Direct) FluidTemperature() (float64, error) {
	return d.client.ReadRegister(regMeasTemp, 1)
}

// TemperatureSetpoint returns the fluid temperature setpoint in C.
func (d *Direct) TemperatureSetpoint() (float64, error) {
	return d.client.ReadRegister(regSetTemp, 1)
}

// SetTemperatureSetpoint sets the fluid temperature setpoint in C.
func (d *Direct) SetTemperatureSetpoint(t float64) error {
	return d.client.WriteRegister(regSetTemp, t, 1)
}

// DischargePressure returns the measured fluid discharge pressure in MPa.
func (d *Direct) DischargePressure() (float64, error) {
	return d.client.ReadRegister(regPressure, 2)
}

// Running reports whether the chiller is running.
func (d *Direct) Running() (bool, error) {
	f, err := d.client.ReadRegister(regState, 0)
	return f != 0, err
}

// SetRunning starts or stops the chiller.
func (d *Direct) SetRunning(on bool) error {
	v := 0.
	if on {
		v = 1
	}
	return d.client.WriteRegister(regState, v, 0)
}
