// Package scpi provides primitives for instruments that speak SCPI or
// SCPI-like text query/response protocols.
package scpi

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/btcardwell/Lab5015Utils/comm"
)

const (
	defaultTimeout = 5 * time.Second

	// responses fit comfortably in one ethernet frame
	respBufSize = 1500
)

// SCPI encapsulates text query/response communication with one instrument.
type SCPI struct {
	// Pool holds the connection(s) to the instrument.
	Pool *comm.Pool

	// Terminators frame each message; both default to '\n' when zero.
	Tx byte
	Rx byte

	// Timeout bounds each transaction; defaults to 5s when zero.
	Timeout time.Duration

	// Handshaking appends an error query to every message and checks
	// that the instrument accepted the input.
	Handshaking bool
}

// New returns an SCPI speaking newline-terminated messages over pool.
func New(pool *comm.Pool) *SCPI {
	return &SCPI{Pool: pool, Tx: '\n', Rx: '\n'}
}

func (s *SCPI) wrap(rw io.ReadWriter) (io.ReadWriter, error) {
	tx, rx := s.Tx, s.Rx
	if tx == 0 {
		tx = '\n'
	}
	if rx == 0 {
		rx = '\n'
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return comm.NewTimeout(comm.NewTerminator(rw, rx, tx), timeout)
}

// Write joins cmds with spaces and sends them to the instrument.  With
// Handshaking on, the instrument's error queue is polled in the same
// transaction and a non-clean response comes back as an error.  Intended
// for "set" operations.
func (s *SCPI) Write(cmds ...string) error {
	conn, err := s.Pool.Get()
	if err != nil {
		return err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	wrap, err := s.wrap(conn)
	if err != nil {
		return err
	}
	if s.Handshaking {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
	}
	_, err = io.WriteString(wrap, strings.Join(cmds, " "))
	if err != nil {
		return err
	}
	if s.Handshaking {
		buf := make([]byte, respBufSize)
		var n int
		n, err = wrap.Read(buf)
		if err != nil {
			return err
		}
		resp := string(buf[:n])
		if !strings.HasPrefix(resp, "+0") && !strings.HasPrefix(resp, "0") {
			err = fmt.Errorf("instrument rejected command: %s", resp)
			return err
		}
	}
	return nil
}

// WriteRead sends cmds and returns the raw response.  Intended for "get"
// operations.
func (s *SCPI) WriteRead(cmds ...string) ([]byte, error) {
	conn, err := s.Pool.Get()
	if err != nil {
		return nil, err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	wrap, err := s.wrap(conn)
	if err != nil {
		return nil, err
	}
	_, err = io.WriteString(wrap, strings.Join(cmds, " "))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, respBufSize)
	var n int
	n, err = wrap.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// ReadString sends cmds and returns the response stripped of trailing
// whitespace.
func (s *SCPI) ReadString(cmds ...string) (string, error) {
	resp, err := s.WriteRead(cmds...)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(resp), "\r\n"), nil
}

// ReadFloat sends cmds and parses the response as a float.
func (s *SCPI) ReadFloat(cmds ...string) (float64, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

// ReadInt sends cmds and parses the response as an integer.
func (s *SCPI) ReadInt(cmds ...string) (int, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(resp))
}

// ReadBool sends cmds and parses the response as a boolean.  Instruments
// report output state as 0/1, which ParseBool accepts.
func (s *SCPI) ReadBool(cmds ...string) (bool, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(strings.TrimSpace(resp))
}

// Raw passes str to the instrument, reading a response only if it was a
// query.  Handshaking is suspended for the exchange.
func (s *SCPI) Raw(str string) (string, error) {
	prev := s.Handshaking
	s.Handshaking = false
	defer func() { s.Handshaking = prev }()
	if strings.Contains(str, "?") {
		return s.ReadString(str)
	}
	return "", s.Write(str)
}

// PopError fetches a single entry from the instrument's error queue, nil
// if the queue is clean.
func (s *SCPI) PopError() error {
	resp, err := s.ReadString("SYSTem:ERRor?")
	if err != nil {
		return err
	}
	if strings.HasPrefix(resp, "+0") || strings.HasPrefix(resp, "0,") {
		return nil
	}
	return fmt.Errorf(resp)
}
