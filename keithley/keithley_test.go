package keithley

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
)

func TestParseCSVFloats(t *testing.T) {
	f, err := parseCSVFloats("95.3188, 1.9982E-01, 2.0000", 3)
	if err != nil {
		t.Fatal(err)
	}
	if f[0] != 95.3188 || f[1] != 0.19982 || f[2] != 2.0 {
		t.Errorf("unexpected values %v", f)
	}
}

func TestParseCSVFloatsTooFewFields(t *testing.T) {
	if _, err := parseCSVFloats("95.3188", 2); err == nil {
		t.Error("expected an error for a short response")
	}
}

// fake2450 answers the measurement dialogue of a model 2450.
func fake2450(t *testing.T) string {
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
					switch {
					case strings.Contains(line, "FETCh?"):
						io.WriteString(c, "12.5, 2.0E-01, 1.5\n")
					case strings.Contains(line, ":MEASure:CURR?") && strings.Contains(line, "SEC"):
						io.WriteString(c, "12.5, 2.0E-01\n")
					case strings.Contains(line, ":MEASure:CURR?"):
						io.WriteString(c, "2.0E-01\n")
					case strings.Contains(line, ":MEASure:VOLT?"):
						io.WriteString(c, "12.5, 1.5\n")
					case strings.Contains(line, "OUTP?"):
						io.WriteString(c, "0\n")
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestK2450MeasureCurrent(t *testing.T) {
	k := New2450(fake2450(t))
	sec, amps, err := k.MeasureCurrent()
	if err != nil {
		t.Fatal(err)
	}
	if sec != 12.5 || amps != 0.2 {
		t.Errorf("unexpected reading %v %v", sec, amps)
	}
}

func TestK2450FetchIV(t *testing.T) {
	k := New2450(fake2450(t))
	sec, amps, volts, err := k.FetchIV()
	if err != nil {
		t.Fatal(err)
	}
	if sec != 12.5 || amps != 0.2 || volts != 1.5 {
		t.Errorf("unexpected reading %v %v %v", sec, amps, volts)
	}
}

func TestK2450GetOutput(t *testing.T) {
	k := New2450(fake2450(t))
	on, err := k.GetOutput()
	if err != nil {
		t.Fatal(err)
	}
	if on {
		t.Error("expected output off")
	}
}
