package sipm

import (
	"log"
	"os"
	"time"
)

// TempConfig parameterizes a TempController.
type TempConfig struct {
	// Target is the temperature to hold at the SiPM in Celsius.
	Target float64

	// MinVoltage and MaxVoltage bound the command voltage sent to the
	// TEC supply.  Defaults -5 and 5 V.
	MinVoltage float64
	MaxVoltage float64

	// MinSafeTemp and MaxSafeTemp bound the allowed target.  Defaults
	// -35 and 40 C.
	MinSafeTemp float64
	MaxSafeTemp float64

	// SettleDelay is how long to wait after commanding a power state
	// change before verifying it.  Default 2s.
	SettleDelay time.Duration

	// Verbose emits a timestamped trace line per step with the
	// decomposed PID terms and the resulting command.
	Verbose bool
}

// temperature loop gains; negative because a positive TEC voltage drives
// the cold plate down
const (
	tempKp = -0.25
	tempKi = 0.
	tempKd = -1.

	// largest correction applied in one step, volts
	tempStepBound = 2.
)

func (c *TempConfig) applyDefaults() {
	if c.MinVoltage == 0 {
		c.MinVoltage = -5
	}
	if c.MaxVoltage == 0 {
		c.MaxVoltage = 5
	}
	if c.MinSafeTemp == 0 {
		c.MinSafeTemp = -35
	}
	if c.MaxSafeTemp == 0 {
		c.MaxSafeTemp = 40
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 2 * time.Second
	}
}

// TempController holds the SiPM temperature at a target by adjusting the
// voltage across a thermoelectric cooler.
type TempController struct {
	cfg    TempConfig
	supply Supply
	loop   *pidLoop

	state   State
	command float64

	// Log receives traces when cfg.Verbose is set.
	Log *log.Logger
}

// NewTempController returns a controller holding cfg.Target degrees C at
// the sensor read by the caller.  The target is validated against the
// safe range; the supply is queried once so the controller starts from
// the device's actual power state.
func NewTempController(s Supply, cfg TempConfig) (*TempController, error) {
	cfg.applyDefaults()
	if cfg.Target < cfg.MinSafeTemp || cfg.Target > cfg.MaxSafeTemp {
		return nil, RangeError{What: "target temperature [C]", Value: cfg.Target, Min: cfg.MinSafeTemp, Max: cfg.MaxSafeTemp}
	}
	on, err := s.GetOutput()
	if err != nil {
		return nil, err
	}
	return &TempController{
		cfg:    cfg,
		supply: s,
		loop:   newPIDLoop(tempKp, tempKi, tempKd, cfg.Target, -tempStepBound, tempStepBound),
		state:  stateOf(on),
		Log:    log.New(os.Stdout, "", log.LstdFlags),
	}, nil
}

// State returns the power state the controller last observed.
func (tc *TempController) State() State {
	return tc.state
}

// CommandVoltage returns the most recently commanded output voltage.
func (tc *TempController) CommandVoltage() float64 {
	return tc.command
}

// Target returns the target temperature in Celsius.
func (tc *TempController) Target() float64 {
	return tc.cfg.Target
}

// PowerOn brings the TEC supply output up from a known-zero voltage.  It
// is a no-op when the controller already observed the supply on.
func (tc *TempController) PowerOn() error {
	if tc.state == On {
		return nil
	}
	tc.Log.Print("powering on the TEC supply")
	if err := tc.supply.SetVoltage(0); err != nil {
		return err
	}
	if err := tc.supply.SetOutput(true); err != nil {
		return err
	}
	time.Sleep(tc.cfg.SettleDelay)
	on, err := tc.supply.GetOutput()
	if err != nil {
		return err
	}
	tc.state = stateOf(on)
	if tc.state != On {
		return PowerSequenceError{Want: On, Got: tc.state}
	}
	return nil
}

// PowerOff zeroes the output voltage and drops the TEC supply output.  It
// is a no-op when the controller already observed the supply off.
func (tc *TempController) PowerOff() error {
	if tc.state == Off {
		return nil
	}
	tc.Log.Print("powering off the TEC supply")
	if err := tc.supply.SetVoltage(0); err != nil {
		return err
	}
	if err := tc.supply.SetOutput(false); err != nil {
		return err
	}
	time.Sleep(tc.cfg.SettleDelay)
	on, err := tc.supply.GetOutput()
	if err != nil {
		return err
	}
	tc.state = stateOf(on)
	if tc.state != Off {
		return PowerSequenceError{Want: Off, Got: tc.state}
	}
	return nil
}

// Step advances the loop one iteration from a fresh temperature reading:
// the sensed value is fed to the PID, the correction is added to the
// running command voltage, and the clamped result is sent to the supply.
func (tc *TempController) Step(celsius float64) error {
	if err := tc.PowerOn(); err != nil {
		return err
	}

	correction := tc.loop.step(celsius)
	tc.command = clamp(tc.command+correction, tc.cfg.MinVoltage, tc.cfg.MaxVoltage)

	if tc.cfg.Verbose {
		p, i, d := tc.loop.components()
		tc.Log.Printf("P=%g I=%g D=%g", p, i, d)
		tc.Log.Printf("setting TEC voltage to %g V [sipm temperature: %g C]", tc.command, celsius)
	}
	if err := tc.supply.SetVoltage(tc.command); err != nil {
		return err
	}
	if tc.cfg.Verbose {
		if amps, volts, err := tc.supply.MeasureIV(); err == nil {
			tc.Log.Printf("TEC power: %g W", amps*volts)
		}
	}
	return nil
}
