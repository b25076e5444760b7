package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/btcardwell/Lab5015Utils/arduino"
	"github.com/btcardwell/Lab5015Utils/keithley"
	"github.com/btcardwell/Lab5015Utils/pilas"
	"github.com/btcardwell/Lab5015Utils/pisensor"
	"github.com/btcardwell/Lab5015Utils/server"
	"github.com/btcardwell/Lab5015Utils/smc"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"goji.io"
	"goji.io/pat"
)

// ObjSetup holds the arguments for a New<device> call.
type ObjSetup struct {
	// Addr holds the network or filesystem address of the device,
	// e.g. 100.100.100.1:5050 for the chiller's serial proxy, or
	// /dev/ttyACM0 for a USB serial device
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Endpoint is the path the routes from this device will be served
	// on, ex. Endpoint="/chiller" produces routes of /chiller/temperature, etc.
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// Type is the kind of the device, e.g. "smc", "pilas", "2450"
	Type string `yaml:"Type" koanf:"Type"`

	// Direct selects Modbus over local serial instead of the serial
	// proxy.  Only used by the chiller.
	Direct bool `yaml:"Direct" koanf:"Direct"`

	// RTU selects RTU framing when Direct is true
	RTU bool `yaml:"RTU" koanf:"RTU"`

	// Slave is the Modbus slave address when Direct is true, 1 if unset
	Slave byte `yaml:"Slave" koanf:"Slave"`

	// Channel selects the output channel on multi-channel supplies,
	// e.g. "CH1" on the 2231A
	Channel string `yaml:"Channel" koanf:"Channel"`

	// User and KeyFile configure SSH access for the box temperature Pi
	User    string `yaml:"User" koanf:"User"`
	KeyFile string `yaml:"KeyFile" koanf:"KeyFile"`
}

// Config holds the initialization parameters for the served devices.
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Nodes is the list of devices to set up
	Nodes []ObjSetup `yaml:"Nodes" koanf:"Nodes"`
}

// subMuxSanitize prepares an endpoint for mounting, "chiller" => "/chiller/"
func subMuxSanitize(stem string) string {
	if !strings.HasPrefix(stem, "/") {
		stem = "/" + stem
	}
	if !strings.HasSuffix(stem, "/") {
		stem = stem + "/"
	}
	return stem
}

// BuildMux builds a submux per configured device and assembles them
// under a single router.  The router serves a special route, /endpoints,
// which returns a map of every device's routes as JSON.
func BuildMux(c Config) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	devices := goji.NewMux()
	supergraph := map[string][]string{}

	for _, node := range c.Nodes {
		var httper server.HTTPer
		typ := strings.ToLower(node.Type)
		switch typ {
		case "smc", "chiller":
			chiller, err := smc.New(smc.Config{
				Addr:   node.Addr,
				Direct: node.Direct,
				RTU:    node.RTU,
				Slave:  node.Slave,
			})
			if err != nil {
				log.Fatal(err)
			}
			httper = smc.NewHTTPWrapper(chiller)

		case "pilas", "laser":
			httper = pilas.NewHTTPWrapper(pilas.New(node.Addr))

		case "2450", "k2450", "sipm-supply":
			httper = keithley.NewHTTPWrapper(keithley.New2450(node.Addr))

		case "2231a", "k2231a", "tec-supply":
			supply := keithley.New2231A(node.Addr, node.Channel)
			if err := supply.Initialize(); err != nil {
				log.Fatal(err)
			}
			httper = keithley.NewHTTPWrapper(supply)

		case "pisensor", "boxtemp":
			httper = pisensor.NewHTTPWrapper(pisensor.New(pisensor.Config{
				Addr:    node.Addr,
				User:    node.User,
				KeyFile: node.KeyFile,
			}))

		case "arduino", "airtemp":
			httper = arduino.NewHTTPWrapper(arduino.New(node.Addr))

		default:
			log.Fatal("type ", typ, " not understood")
		}

		stem := subMuxSanitize(node.Endpoint)
		supergraph[stem] = httper.RT().Endpoints()

		sub := goji.SubMux()
		devices.Handle(pat.New(stem+"*"), sub)
		httper.RT().Bind(sub)
	}

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	root.Mount("/", devices)
	return root
}
