// Package server contains shared plumbing for the HTTP wrappers, a
// payload type that speaks both JSON and plain text, and a goji-backed
// route table.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"

	"goji.io"
)

// HumanPayload is a struct that holds the data to declare a payload
// of a single basic type to an HTTP client.  T declares which of the
// value fields is live.
type HumanPayload struct {
	// Bool holds a binary value
	Bool bool `json:"bool,omitempty"`

	// Float holds a floating point value
	Float float64 `json:"f64,omitempty"`

	// Int holds an integer value
	Int int `json:"int,omitempty"`

	// String holds a string value
	String string `json:"str,omitempty"`

	// T holds the type of the live field
	T types.BasicKind `json:"-"`
}

// EncodeAndRespond writes the live field of the payload to w as JSON
// with the appropriate key, e.g. {"f64": 3.141} for a Float payload.
func (hp *HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	var (
		obj interface{}
		err error
	)
	switch hp.T {
	case types.Bool:
		obj = BoolT{Bool: hp.Bool}
	case types.Float64:
		obj = FloatT{F64: hp.Float}
	case types.Int:
		obj = IntT{Int: hp.Int}
	case types.String:
		obj = StrT{Str: hp.String}
	default:
		err = fmt.Errorf("unknown payload type %v", hp.T)
	}
	if err == nil {
		err = json.NewEncoder(w).Encode(obj)
	}
	if err != nil {
		fstr := fmt.Sprintf("error encoding payload to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// BoolT is a struct with a single Bool field, used to decode and encode
// JSON bodies of the form {"bool": true}
type BoolT struct {
	Bool bool `json:"bool"`
}

// FloatT is a struct with a single F64 field, {"f64": 1.5}
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single Int field, {"int": 5}
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single Str field, {"str": "..."}
type StrT struct {
	Str string `json:"str"`
}

// RouteTable maps goji patterns to handler funcs
type RouteTable map[goji.Pattern]http.HandlerFunc

// Endpoints returns the string representation of each pattern in the table
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, fmt.Sprint(k))
	}
	return routes
}

// Bind attaches each route in the table to mux
func (rt RouteTable) Bind(mux *goji.Mux) {
	for ptrn, handler := range rt {
		mux.HandleFunc(ptrn, handler)
	}
}

// HTTPer is an object that can yield its route table for binding to a mux
type HTTPer interface {
	RT() RouteTable
}
