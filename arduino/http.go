package arduino

import (
	"encoding/json"
	"net/http"

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
		pat.Get("/temperature"): generichttp.GetFloat(s.ReadAirTemp),
		pat.Get("/sample"):      w.HTTPSample,
	}
	return w
}

// HTTPSample polls the board and returns the full sample as JSON
func (h HTTPWrapper) HTTPSample(w http.ResponseWriter, r *http.Request) {
	reading, err := h.Read()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err = json.NewEncoder(w).Encode(reading)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}
