package pisensor

import (
	"github.com/btcardwell/Lab5015Utils/generichttp"
	"github.com/btcardwell/Lab5015Utils/server"

	"goji.io/pat"
)

// HTTPWrapper provides HTTP bindings on top of a Sensor.
type HTTPWrapper struct {
	*Sensor

	// RouteTable maps goji patterns to http handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(s *Sensor) HTTPWrapper {
	w := HTTPWrapper{Sensor: s}
	w.RouteTable = server.RouteTable{
		pat.Get("/temperature"): generichttp.GetFloat(s.Read),
	}
	return w
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}
