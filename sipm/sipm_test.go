package sipm

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockSupply is an in-memory stand-in for a programmable power supply.
// It records every command so tests can assert on traffic.
type mockSupply struct {
	on       bool
	voltage  float64
	amps     float64
	volts    float64
	stickOff bool // when set, SetOutput(true) silently fails

	setVoltageCalls []float64
	setOutputCalls  []bool
}

func (m *mockSupply) MeasureIV() (float64, float64, error) {
	return m.amps, m.volts, nil
}

func (m *mockSupply) SetVoltage(v float64) error {
	m.setVoltageCalls = append(m.setVoltageCalls, v)
	m.voltage = v
	return nil
}

func (m *mockSupply) SetOutput(on bool) error {
	m.setOutputCalls = append(m.setOutputCalls, on)
	if on && m.stickOff {
		return nil
	}
	m.on = on
	return nil
}

func (m *mockSupply) GetOutput() (bool, error) {
	return m.on, nil
}

func quietPowerController(t *testing.T, s Supply, cfg PowerConfig) *PowerController {
	t.Helper()
	cfg.SettleDelay = 1 // nanosecond, keeps the tests fast
	pc, err := NewPowerController(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	pc.Log = log.New(io.Discard, "", 0)
	return pc
}

func quietTempController(t *testing.T, s Supply, cfg TempConfig) *TempController {
	t.Helper()
	cfg.SettleDelay = 1
	tc, err := NewTempController(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	tc.Log = log.New(io.Discard, "", 0)
	return tc
}

func TestNewPowerControllerRejectsOutOfRangeTarget(t *testing.T) {
	for _, target := range []float64{-0.1, 2.5} {
		_, err := NewPowerController(&mockSupply{}, PowerConfig{Target: target})
		var re RangeError
		assert.True(t, errors.As(err, &re), "target %g should be rejected", target)
	}
}

func TestNewPowerControllerMirrorsSupplyState(t *testing.T) {
	pc := quietPowerController(t, &mockSupply{on: true}, PowerConfig{Target: 0.5})
	assert.Equal(t, On, pc.State())

	pc = quietPowerController(t, &mockSupply{}, PowerConfig{Target: 0.5})
	assert.Equal(t, Off, pc.State())
}

func TestPowerOnIsIdempotent(t *testing.T) {
	s := &mockSupply{on: true}
	pc := quietPowerController(t, s, PowerConfig{Target: 0.5})
	assert.NoError(t, pc.PowerOn())
	assert.Empty(t, s.setVoltageCalls)
	assert.Empty(t, s.setOutputCalls)
}

func TestPowerOnSequence(t *testing.T) {
	s := &mockSupply{}
	pc := quietPowerController(t, s, PowerConfig{Target: 0.5})
	assert.NoError(t, pc.PowerOn())
	assert.Equal(t, []float64{0}, s.setVoltageCalls)
	assert.Equal(t, []bool{true}, s.setOutputCalls)
	assert.Equal(t, On, pc.State())
}

func TestPowerOnVerifiesOutputState(t *testing.T) {
	s := &mockSupply{stickOff: true}
	pc := quietPowerController(t, s, PowerConfig{Target: 0.5})
	err := pc.PowerOn()
	var pse PowerSequenceError
	assert.True(t, errors.As(err, &pse))
	assert.Equal(t, On, pse.Want)
	assert.Equal(t, Off, pse.Got)
	assert.Equal(t, Off, pc.State())
}

func TestPowerOffSequence(t *testing.T) {
	s := &mockSupply{on: true}
	pc := quietPowerController(t, s, PowerConfig{Target: 0.5})
	assert.NoError(t, pc.PowerOff())
	assert.Equal(t, []float64{0}, s.setVoltageCalls)
	assert.Equal(t, []bool{false}, s.setOutputCalls)
	assert.Equal(t, Off, pc.State())
}

func TestPowerStepFirstCorrectionIsProportional(t *testing.T) {
	// 0.2 A at 2.0 V through 1.2 ohm of cable dissipates 0.352 W at the
	// load; against a 0.432 W target the first correction is purely
	// proportional: 0.5 * 0.08 = 0.04 V.
	s := &mockSupply{on: true}
	pc := quietPowerController(t, s, PowerConfig{Target: 0.432})
	assert.NoError(t, pc.Step(0.2, 2.0))
	if assert.Len(t, s.setVoltageCalls, 1) {
		assert.InDelta(t, 0.04, s.setVoltageCalls[0], 1e-9)
	}
	assert.InDelta(t, 0.04, pc.CommandVoltage(), 1e-9)
}

func TestPowerStepClampsCommandVoltage(t *testing.T) {
	s := &mockSupply{on: true}
	pc := quietPowerController(t, s, PowerConfig{Target: 2})
	// zero measured power leaves a huge error but the correction is
	// bounded per step and the command bounded overall
	for i := 0; i < 20; i++ {
		assert.NoError(t, pc.Step(0, 0))
	}
	for _, v := range s.setVoltageCalls {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 2.0)
	}
	assert.Equal(t, 2.0, pc.CommandVoltage())
}

func TestPowerStepPowersOnFirst(t *testing.T) {
	s := &mockSupply{}
	pc := quietPowerController(t, s, PowerConfig{Target: 0.5})
	assert.NoError(t, pc.Step(0.1, 1.0))
	// power-on traffic precedes the loop command
	assert.Equal(t, []bool{true}, s.setOutputCalls)
	assert.Equal(t, 0.0, s.setVoltageCalls[0])
	assert.Equal(t, On, pc.State())
}

func TestNewTempControllerRejectsOutOfRangeTarget(t *testing.T) {
	for _, target := range []float64{-50, 45} {
		_, err := NewTempController(&mockSupply{}, TempConfig{Target: target})
		var re RangeError
		assert.True(t, errors.As(err, &re), "target %g should be rejected", target)
	}
}

func TestTempStepFirstCorrectionIsProportional(t *testing.T) {
	// sensed 30 C against a 25 C target: first correction is purely
	// proportional, -0.25 * -5 = +1.25 V of additional cooling drive.
	s := &mockSupply{on: true}
	tc := quietTempController(t, s, TempConfig{Target: 25})
	assert.NoError(t, tc.Step(30))
	if assert.Len(t, s.setVoltageCalls, 1) {
		assert.InDelta(t, 1.25, s.setVoltageCalls[0], 1e-9)
	}
}

func TestTempStepClampsCommandVoltage(t *testing.T) {
	s := &mockSupply{on: true}
	tc := quietTempController(t, s, TempConfig{Target: -30})
	for i := 0; i < 20; i++ {
		assert.NoError(t, tc.Step(40))
	}
	for _, v := range s.setVoltageCalls {
		assert.GreaterOrEqual(t, v, -5.0)
		assert.LessOrEqual(t, v, 5.0)
	}
	assert.Equal(t, 5.0, tc.CommandVoltage())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "OFF", Off.String())
	assert.Equal(t, "ON", On.String())
}

func TestRangeErrorMessage(t *testing.T) {
	err := RangeError{What: "target power [W]", Value: 3, Min: 0, Max: 2}
	assert.Contains(t, err.Error(), "target power [W]")
	assert.Contains(t, err.Error(), "3")
}
