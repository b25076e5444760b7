package smc_test

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/btcardwell/Lab5015Utils/smc"
)

// fakeProxy emulates the serial proxy in front of the chiller: one line in,
// one line out, registers held in a map.
func fakeProxy(t *testing.T) string {
	regs := map[string]string{
		"0":  "23.4",
		"2":  "0.12",
		"11": "25.0",
		"12": "1",
	}
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal("could not listen:", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				rd := bufio.NewReader(c)
				for {
					line, err := rd.ReadString('\n')
					if err != nil {
						return
					}
					fields := strings.Fields(line)
					switch {
					case len(fields) == 3 && fields[0] == "read":
						fmt.Fprintf(c, "%s\n", regs[fields[1]])
					case len(fields) == 4 && fields[0] == "write":
						regs[fields[1]] = fields[3]
						fmt.Fprintf(c, "OK\n")
					default:
						fmt.Fprintf(c, "ERR\n")
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestProxyFluidTemperature(t *testing.T) {
	ch := smc.NewProxy(fakeProxy(t))
	f, err := ch.FluidTemperature()
	if err != nil {
		t.Fatal(err)
	}
	if f != 23.4 {
		t.Errorf("expected 23.4, got %v", f)
	}
}

func TestProxySetpointRoundTrip(t *testing.T) {
	ch := smc.NewProxy(fakeProxy(t))
	if err := ch.SetTemperatureSetpoint(18.5); err != nil {
		t.Fatal(err)
	}
	f, err := ch.TemperatureSetpoint()
	if err != nil {
		t.Fatal(err)
	}
	if f != 18.5 {
		t.Errorf("expected 18.5, got %v", f)
	}
}

func TestProxyRunning(t *testing.T) {
	ch := smc.NewProxy(fakeProxy(t))
	on, err := ch.Running()
	if err != nil {
		t.Fatal(err)
	}
	if !on {
		t.Error("expected chiller running")
	}
	if err := ch.SetRunning(false); err != nil {
		t.Fatal(err)
	}
	on, err = ch.Running()
	if err != nil {
		t.Fatal(err)
	}
	if on {
		t.Error("expected chiller stopped")
	}
}

func TestNewSelectsTransport(t *testing.T) {
	c, err := smc.New(smc.Config{Addr: "localhost:5050"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*smc.Proxy); !ok {
		t.Errorf("expected proxy transport, got %T", c)
	}
	c, err = smc.New(smc.Config{Addr: "/dev/ttyS0", Direct: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*smc.Direct); !ok {
		t.Errorf("expected direct transport, got %T", c)
	}
	if _, err = smc.New(smc.Config{}); err == nil {
		t.Error("expected an error for a missing address")
	}
}
