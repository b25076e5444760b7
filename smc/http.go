package smc

import (
	"github.com/btcardwell/Lab5015Utils/generichttp"
	"github.com/btcardwell/Lab5015Utils/server"

	"goji.io/pat"
)

// HTTPWrapper provides HTTP bindings on top of a Chiller.
// Bind the route table to a mux to expose them.
type HTTPWrapper struct {
	// Chiller is the underlying device that is wrapped
	Chiller

	// RouteTable maps goji patterns to http handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(c Chiller) HTTPWrapper {
	w := HTTPWrapper{Chiller: c}
	rt := server.RouteTable{
		pat.Get("/temperature"):          generichttp.GetFloat(c.FluidTemperature),
		pat.Get("/temperature-setpoint"): generichttp.GetFloat(c.TemperatureSetpoint),
		pat.Post("/temperature-setpoint"): generichttp.SetFloat(func(f float64) error {
			return c.SetTemperatureSetpoint(f)
		}),
		pat.Get("/pressure"): generichttp.GetFloat(c.DischargePressure),
		pat.Get("/running"):  generichttp.GetBool(c.Running),
		pat.Post("/running"): generichttp.SetBool(func(b bool) error {
			return c.SetRunning(b)
		}),
	}
	w.RouteTable = rt
	return w
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}
