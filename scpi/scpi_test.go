package scpi_test

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/btcardwell/Lab5015Utils/comm"
	"github.com/btcardwell/Lab5015Utils/scpi"
)

// fakeInstrument answers a few queries the way a Keithley would.
func fakeInstrument(t *testing.T) string {
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
					line = strings.TrimRight(line, "\n")
					switch {
					case strings.Contains(line, "MEAS:VOLT?"):
						io.WriteString(c, "1.9982\n")
					case strings.Contains(line, "OUTP?"):
						io.WriteString(c, "1\n")
					case strings.Contains(line, "*IDN?"):
						io.WriteString(c, "KEITHLEY INSTRUMENTS,MODEL 2450\n")
					case strings.Contains(line, "?"):
						io.WriteString(c, "0\n")
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func newSCPI(t *testing.T) *scpi.SCPI {
	addr := fakeInstrument(t)
	pool := comm.NewPool(1, time.Second, comm.BackingOffTCPConnMaker(addr, time.Second))
	return scpi.New(pool)
}

func TestReadFloat(t *testing.T) {
	s := newSCPI(t)
	f, err := s.ReadFloat("MEAS:VOLT?")
	if err != nil {
		t.Fatal(err)
	}
	if f != 1.9982 {
		t.Errorf("expected 1.9982, got %v", f)
	}
}

func TestReadBool(t *testing.T) {
	s := newSCPI(t)
	b, err := s.ReadBool("OUTP?")
	if err != nil {
		t.Fatal(err)
	}
	if !b {
		t.Error("expected output on")
	}
}

func TestReadString(t *testing.T) {
	s := newSCPI(t)
	str, err := s.ReadString("*IDN?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(str, "2450") {
		t.Errorf("unexpected identification %q", str)
	}
}

func TestRawWriteHasNoResponse(t *testing.T) {
	s := newSCPI(t)
	resp, err := s.Raw("SOUR:VOLT 1.5")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "" {
		t.Errorf("expected no response for a write, got %q", resp)
	}
}
