package pilas

import (
	"encoding/json"
	"net/http"

	"github.com/btcardwell/Lab5015Utils/generichttp"
	"github.com/btcardwell/Lab5015Utils/server"

	"goji.io/pat"
)

// HTTPWrapper provides HTTP bindings on top of a Laser.
type HTTPWrapper struct {
	// Laser is the underlying device that is wrapped
	*Laser

	// RouteTable maps goji patterns to http handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(l *Laser) HTTPWrapper {
	w := HTTPWrapper{Laser: l}
	rt := server.RouteTable{
		pat.Get("/tune"):       generichttp.GetString(l.Tune),
		pat.Get("/frequency"):  generichttp.GetString(l.Frequency),
		pat.Get("/emission"):   generichttp.GetBool(l.Emitting),
		pat.Post("/emission"):  generichttp.SetBool(l.SetEmitting),
		pat.Post("/tune"):      generichttp.SetFloat(l.SetTune),
		pat.Post("/frequency"): w.HTTPSetFrequency,
		pat.Post("/trigger-source"): generichttp.SetString(func(s string) error {
			ts, err := ParseTriggerSource(s)
			if err != nil {
				return err
			}
			return l.SetTriggerSource(ts)
		}),
	}
	w.RouteTable = rt
	return w
}

// HTTPSetFrequency sets the pulse frequency from a JSON body of {"int": hz}
func (h HTTPWrapper) HTTPSetFrequency(w http.ResponseWriter, r *http.Request) {
	i := server.IntT{}
	err := json.NewDecoder(r.Body).Decode(&i)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.SetFrequency(i.Int)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}
