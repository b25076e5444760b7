// Command sipmctl runs one of the two SiPM control loops against the
// test stand hardware: "power" holds the bias power delivered to the
// SiPMs with a Keithley 2450, "temp" holds the SiPM temperature by
// driving the TECs from a Keithley 2231A.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"goji.io"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"github.com/btcardwell/Lab5015Utils/arduino"
	"github.com/btcardwell/Lab5015Utils/keithley"
	"github.com/btcardwell/Lab5015Utils/pisensor"
	"github.com/btcardwell/Lab5015Utils/sipm"
)

// Config holds the loop parameters and hardware addresses.
type Config struct {
	// Mode selects the loop, "power" or "temp"
	Mode string `yaml:"Mode" koanf:"Mode"`

	// Addr serves the loop status over HTTP when set, e.g. ":8001"
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Target is the setpoint, watts for power, Celsius for temp
	Target float64 `yaml:"Target" koanf:"Target"`

	// Interval is the sample period
	Interval time.Duration `yaml:"Interval" koanf:"Interval"`

	// Verbose turns on the per-step trace
	Verbose bool `yaml:"Verbose" koanf:"Verbose"`

	// SupplyAddr is the TCP address of the 2450 in power mode, or the
	// serial device of the 2231A in temp mode
	SupplyAddr string `yaml:"SupplyAddr" koanf:"SupplyAddr"`

	// Channel is the 2231A output channel in temp mode, "CH1" if unset
	Channel string `yaml:"Channel" koanf:"Channel"`

	// Sensor selects the temperature source in temp mode, "arduino" or
	// "pisensor"
	Sensor string `yaml:"Sensor" koanf:"Sensor"`

	// SensorAddr is the serial device of the arduino, or the host:port
	// of the Pi's SSH daemon
	SensorAddr string `yaml:"SensorAddr" koanf:"SensorAddr"`

	// User and KeyFile configure SSH access when Sensor is "pisensor"
	User    string `yaml:"User" koanf:"User"`
	KeyFile string `yaml:"KeyFile" koanf:"KeyFile"`
}

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "sipmctl.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(Config{
		Mode:     "power",
		Interval: 3 * time.Second,
		Channel:  "CH1",
		Sensor:   "arduino"}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `sipmctl holds the SiPM bias power or the SiPM temperature at a setpoint
by stepping a PID loop against the test stand hardware.

Usage:
	sipmctl <command>

Commands:
	run
	mkconf
	conf
	version`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("sipmctl version %v\n", Version)
}

// serveStatus exposes the loop status over HTTP at addr.
func serveStatus(addr string, w sipm.HTTPWrapper) {
	mux := goji.NewMux()
	w.RT().Bind(mux)
	go func() {
		log.Println("serving loop status at", addr)
		log.Println(http.ListenAndServe(addr, mux))
	}()
}

// powerLoop steps the bias power controller until sig fires, then
// powers the supply down.
func powerLoop(c Config, sig chan os.Signal) {
	supply := keithley.New2450(c.SupplyAddr)
	ctl, err := sipm.NewPowerController(supply, sipm.PowerConfig{
		Target:  c.Target,
		Verbose: c.Verbose,
	})
	if err != nil {
		log.Fatal(err)
	}
	if c.Addr != "" {
		serveStatus(c.Addr, sipm.NewHTTPWrapper(ctl))
	}
	defer func() {
		if err := ctl.PowerOff(); err != nil {
			log.Println("power off failed:", err)
		}
	}()

	tick := time.NewTicker(c.Interval)
	defer tick.Stop()
	for {
		select {
		case <-sig:
			log.Println("shutting down")
			return
		case <-tick.C:
			amps, volts, err := supply.MeasureIV()
			if err != nil {
				log.Println("measurement failed:", err)
				continue
			}
			if err := ctl.Step(amps, volts); err != nil {
				log.Println("step failed:", err)
			}
		}
	}
}

// tempLoop steps the temperature controller until sig fires, then
// powers the TEC supply down.
func tempLoop(c Config, sig chan os.Signal) {
	supply := keithley.New2231A(c.SupplyAddr, c.Channel)
	if err := supply.Initialize(); err != nil {
		log.Fatal(err)
	}

	var read func() (float64, error)
	switch strings.ToLower(c.Sensor) {
	case "arduino", "airtemp":
		read = arduino.New(c.SensorAddr).ReadAirTemp
	case "pisensor", "boxtemp":
		read = pisensor.New(pisensor.Config{
			Addr:    c.SensorAddr,
			User:    c.User,
			KeyFile: c.KeyFile,
		}).Read
	default:
		log.Fatal("sensor ", c.Sensor, " not understood")
	}

	ctl, err := sipm.NewTempController(supply, sipm.TempConfig{
		Target:  c.Target,
		Verbose: c.Verbose,
	})
	if err != nil {
		log.Fatal(err)
	}
	if c.Addr != "" {
		serveStatus(c.Addr, sipm.NewHTTPWrapper(ctl))
	}
	defer func() {
		if err := ctl.PowerOff(); err != nil {
			log.Println("power off failed:", err)
		}
	}()

	tick := time.NewTicker(c.Interval)
	defer tick.Stop()
	for {
		select {
		case <-sig:
			log.Println("shutting down")
			return
		case <-tick.C:
			celsius, err := read()
			if err != nil {
				log.Println("temperature read failed:", err)
				continue
			}
			if err := ctl.Step(celsius); err != nil {
				log.Println("step failed:", err)
			}
		}
	}
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	switch strings.ToLower(c.Mode) {
	case "power":
		powerLoop(c, sig)
	case "temp", "temperature":
		tempLoop(c, sig)
	default:
		log.Fatal("mode ", c.Mode, " not understood")
	}
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	switch strings.ToLower(args[1]) {
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "version":
		pversion()
		return
	case "run":
		run()
	default:
		root()
	}
}
