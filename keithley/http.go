package keithley

import (
	"encoding/json"
	"go/types"
	"net/http"

	"github.com/btcardwell/Lab5015Utils/generichttp"
	"github.com/btcardwell/Lab5015Utils/server"

	"goji.io/pat"
)

// Supply is the programmable-source surface shared by the 2450 and the
// 2231A, what the HTTP wrapper and the control loops consume.
type Supply interface {
	// MeasureIV measures the output current and voltage
	MeasureIV() (float64, float64, error)

	// SetVoltage sets the output voltage
	SetVoltage(float64) error

	// SetOutput turns the output on or off
	SetOutput(bool) error

	// GetOutput reports whether the output is on
	GetOutput() (bool, error)

	// Raw sends a raw command, returning the reply to queries
	Raw(string) (string, error)
}

// HTTPWrapper provides HTTP bindings on top of a Supply.
type HTTPWrapper struct {
	// Supply is the underlying device that is wrapped
	Supply

	// RouteTable maps goji patterns to http handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(s Supply) HTTPWrapper {
	w := HTTPWrapper{Supply: s}
	rt := server.RouteTable{
		pat.Get("/iv"):       w.HTTPMeasureIV,
		pat.Post("/voltage"): generichttp.SetFloat(s.SetVoltage),
		pat.Get("/output"):   generichttp.GetBool(s.GetOutput),
		pat.Post("/output"):  generichttp.SetBool(s.SetOutput),
		pat.Post("/raw"):     w.HTTPRaw,
	}
	w.RouteTable = rt
	return w
}

// HTTPMeasureIV measures current and voltage and returns them as JSON
// {"amps": i, "volts": v}
func (h HTTPWrapper) HTTPMeasureIV(w http.ResponseWriter, r *http.Request) {
	amps, volts, err := h.MeasureIV()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err = json.NewEncoder(w).Encode(map[string]float64{"amps": amps, "volts": volts})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HTTPRaw forwards the body's {"str": cmd} to the instrument and returns
// the reply, if any, as {"str": resp}
func (h HTTPWrapper) HTTPRaw(w http.ResponseWriter, r *http.Request) {
	s := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&s)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := h.Raw(s.Str)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.String, String: resp}
	hp.EncodeAndRespond(w, r)
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}
