package sipm

import (
	"log"
	"os"
	"time"
)

// PowerConfig parameterizes a PowerController.  The zero value of every
// field other than Target is replaced by the defaults below.
type PowerConfig struct {
	// Target is the power to hold at the SiPM in watts.
	Target float64

	// MinVoltage and MaxVoltage bound the command voltage sent to the
	// supply.  Defaults 0 and 2 V.
	MinVoltage float64
	MaxVoltage float64

	// MinSafePower and MaxSafePower bound the allowed target.  Defaults
	// 0 and 2 W.
	MinSafePower float64
	MaxSafePower float64

	// CableResistance is the round-trip lead-wire resistance in ohms,
	// used to subtract the power dissipated in the cable from the
	// measurement.  Default 1.2.
	CableResistance float64

	// SettleDelay is how long to wait after commanding a power state
	// change before verifying it.  Default 2s.
	SettleDelay time.Duration

	// Verbose emits a timestamped trace line per step with the
	// decomposed PID terms and the resulting command.
	Verbose bool
}

// power loop gains; derivative-heavy because the supply responds faster
// than the thermal mass it feeds
const (
	powerKp = 0.5
	powerKi = 0.
	powerKd = 1.

	// largest correction applied in one step, volts
	powerStepBound = 0.5
)

func (c *PowerConfig) applyDefaults() {
	if c.MaxVoltage == 0 {
		c.MaxVoltage = 2
	}
	if c.MaxSafePower == 0 {
		c.MaxSafePower = 2
	}
	if c.CableResistance == 0 {
		c.CableResistance = 1.2
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 2 * time.Second
	}
}

// PowerController holds the electrical power delivered to the SiPM
// front-end at a target wattage by adjusting the bias voltage.
type PowerController struct {
	cfg    PowerConfig
	supply Supply
	loop   *pidLoop

	state State

	// command is the working point of the loop: the most recently
	// commanded output voltage.
	command float64

	// Log receives traces when cfg.Verbose is set.
	Log *log.Logger
}

// NewPowerController returns a controller holding cfg.Target watts at the
// load behind s.  The target is validated against the safe power range;
// the supply is queried once so the controller starts from the device's
// actual power state.
func NewPowerController(s Supply, cfg PowerConfig) (*PowerController, error) {
	cfg.applyDefaults()
	if cfg.Target < cfg.MinSafePower || cfg.Target > cfg.MaxSafePower {
		return nil, RangeError{What: "target power [W]", Value: cfg.Target, Min: cfg.MinSafePower, Max: cfg.MaxSafePower}
	}
	on, err := s.GetOutput()
	if err != nil {
		return nil, err
	}
	return &PowerController{
		cfg:    cfg,
		supply: s,
		loop:   newPIDLoop(powerKp, powerKi, powerKd, cfg.Target, -powerStepBound, powerStepBound),
		state:  stateOf(on),
		Log:    log.New(os.Stdout, "", log.LstdFlags),
	}, nil
}

// State returns the power state the controller last observed.
func (pc *PowerController) State() State {
	return pc.state
}

// CommandVoltage returns the most recently commanded output voltage.
func (pc *PowerController) CommandVoltage() float64 {
	return pc.command
}

// Target returns the target power in watts.
func (pc *PowerController) Target() float64 {
	return pc.cfg.Target
}

// PowerOn brings the supply output up from a known-zero voltage.  It is a
// no-op when the controller already observed the supply on.
func (pc *PowerController) PowerOn() error {
	if pc.state == On {
		return nil
	}
	pc.Log.Print("powering on the SiPM supply")
	if err := pc.supply.SetVoltage(0); err != nil {
		return err
	}
	if err := pc.supply.SetOutput(true); err != nil {
		return err
	}
	time.Sleep(pc.cfg.SettleDelay)
	on, err := pc.supply.GetOutput()
	if err != nil {
		return err
	}
	pc.state = stateOf(on)
	if pc.state != On {
		return PowerSequenceError{Want: On, Got: pc.state}
	}
	return nil
}

// PowerOff zeroes the output voltage and drops the supply output.  It is
// a no-op when the controller already observed the supply off.
func (pc *PowerController) PowerOff() error {
	if pc.state == Off {
		return nil
	}
	pc.Log.Print("powering off the SiPM supply")
	if err := pc.supply.SetVoltage(0); err != nil {
		return err
	}
	if err := pc.supply.SetOutput(false); err != nil {
		return err
	}
	time.Sleep(pc.cfg.SettleDelay)
	on, err := pc.supply.GetOutput()
	if err != nil {
		return err
	}
	pc.state = stateOf(on)
	if pc.state != Off {
		return PowerSequenceError{Want: Off, Got: pc.state}
	}
	return nil
}

// Step advances the loop one iteration from a fresh current/voltage
// measurement: the dissipated power P = V*I - I^2*Rcable is fed to the
// PID, the correction is added to the running command voltage, and the
// clamped result is sent to the supply.
func (pc *PowerController) Step(amps, volts float64) error {
	if err := pc.PowerOn(); err != nil {
		return err
	}

	power := volts*amps - amps*amps*pc.cfg.CableResistance
	if power < pc.cfg.MinSafePower || power > pc.cfg.MaxSafePower {
		// outside the safe band; surfaced in the trace, shutdown is the
		// monitoring loop's call
		pc.Log.Printf("WARNING: measured SiPM power %g W outside safe range [%g, %g]",
			power, pc.cfg.MinSafePower, pc.cfg.MaxSafePower)
	}
	correction := pc.loop.step(power)
	pc.command = clamp(pc.command+correction, pc.cfg.MinVoltage, pc.cfg.MaxVoltage)

	if pc.cfg.Verbose {
		p, i, d := pc.loop.components()
		pc.Log.Printf("P=%g I=%g D=%g", p, i, d)
		pc.Log.Printf("setting SiPM voltage to %g V [sipm current: %g A, sipm power: %g W]",
			pc.command, amps, power)
	}
	return pc.supply.SetVoltage(pc.command)
}
