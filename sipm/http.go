package sipm

import (
	"github.com/btcardwell/Lab5015Utils/generichttp"
	"github.com/btcardwell/Lab5015Utils/server"

	"goji.io/pat"
)

// loopStatus is the read-only surface the two controllers share.
type loopStatus interface {
	State() State
	CommandVoltage() float64
	Target() float64
	PowerOn() error
	PowerOff() error
}

// HTTPWrapper exposes the status of a running control loop over HTTP.
// The loop itself is stepped by its host process, not by web requests.
type HTTPWrapper struct {
	loop loopStatus

	// RouteTable maps goji patterns to http handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(l loopStatus) HTTPWrapper {
	w := HTTPWrapper{loop: l}
	rt := server.RouteTable{
		pat.Get("/state"): generichttp.GetString(func() (string, error) {
			return w.loop.State().String(), nil
		}),
		pat.Get("/target"): generichttp.GetFloat(func() (float64, error) {
			return w.loop.Target(), nil
		}),
		pat.Get("/command-voltage"): generichttp.GetFloat(func() (float64, error) {
			return w.loop.CommandVoltage(), nil
		}),
		pat.Post("/power"): generichttp.SetBool(func(on bool) error {
			if on {
				return w.loop.PowerOn()
			}
			return w.loop.PowerOff()
		}),
	}
	w.RouteTable = rt
	return w
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}
