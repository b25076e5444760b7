/*Package modbus implements the small slice of the Modbus protocol spoken
by the chiller's register interface: reading and writing single holding
registers, in ASCII or RTU framing.

Registers hold signed 16-bit fixed point values; the caller states how many
decimal places the register carries and values are scaled on the way in
and out.
*/
package modbus

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/btcardwell/Lab5015Utils/comm"
	"github.com/snksoft/crc"
)

// Mode selects the wire framing.
type Mode int

const (
	// ASCII framing: ':' + uppercase hex payload + LRC + CRLF.
	ASCII Mode = iota
	// RTU framing: raw payload + CRC-16 (lo byte first).
	RTU
)

const (
	fnReadHolding = 0x03
	fnWriteSingle = 0x06

	defaultTimeout = 3 * time.Second
)

var (
	// ErrShortResponse is generated when the device reply is too short to
	// carry a complete frame.
	ErrShortResponse = errors.New("response too short to be a modbus frame")

	// ErrChecksumMismatch is generated when the frame check does not
	// match its contents.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrSlaveMismatch is generated when a reply carries another slave's
	// address.
	ErrSlaveMismatch = errors.New("response from unexpected slave address")

	exceptions = map[byte]string{
		1: "illegal function",
		2: "illegal data address",
		3: "illegal data value",
		4: "slave device failure",
	}

	// CRC-16/MODBUS: poly 0x8005 reflected, init 0xFFFF.
	crcParams = &crc.Parameters{
		Width:      16,
		Polynomial: 0x8005,
		Init:       0xFFFF,
		ReflectIn:  true,
		ReflectOut: true,
		FinalXor:   0x0000,
	}
)

// Client reads and writes holding registers on a single slave.
type Client struct {
	pool    *comm.Pool
	slave   byte
	mode    Mode
	timeout time.Duration
}

// NewClient returns a Client for the given slave address over pool.
func NewClient(pool *comm.Pool, slave byte, mode Mode) *Client {
	return &Client{pool: pool, slave: slave, mode: mode, timeout: defaultTimeout}
}

// ReadRegister reads one holding register and scales it by the given
// number of decimal places.
func (c *Client) ReadRegister(reg uint16, decimals int) (float64, error) {
	pdu := []byte{fnReadHolding, byte(reg >> 8), byte(reg), 0x00, 0x01}
	resp, err := c.transact(pdu, 4) // fn + bytecount + 2 data
	if err != nil {
		return 0, err
	}
	if len(resp) < 4 || resp[1] != 2 {
		return 0, ErrShortResponse
	}
	raw := int16(uint16(resp[2])<<8 | uint16(resp[3]))
	return float64(raw) / math.Pow10(decimals), nil
}

// WriteRegister scales value by the given number of decimal places and
// writes it to one holding register.
func (c *Client) WriteRegister(reg uint16, value float64, decimals int) error {
	raw := uint16(int16(math.Round(value * math.Pow10(decimals))))
	pdu := []byte{fnWriteSingle, byte(reg >> 8), byte(reg), byte(raw >> 8), byte(raw)}
	_, err := c.transact(pdu, 5) // echo of the request PDU
	return err
}

// transact performs one request/response exchange.  respLen is the
// expected response PDU length for a successful reply; exception replies
// are shorter and detected by the function code's high bit.
func (c *Client) transact(pdu []byte, respLen int) ([]byte, error) {
	conn, err := c.pool.Get()
	if err != nil {
		return nil, err
	}
	defer func() { c.pool.ReturnWithError(conn, err) }()
	wrap, err := comm.NewTimeout(conn, c.timeout)
	if err != nil {
		return nil, err
	}

	var frame []byte
	if c.mode == ASCII {
		frame = asciiFrame(c.slave, pdu)
	} else {
		frame = rtuFrame(c.slave, pdu)
	}
	if _, err = wrap.Write(frame); err != nil {
		return nil, err
	}

	var (
		slave byte
		resp  []byte
	)
	if c.mode == ASCII {
		raw := make([]byte, 256)
		n := 0
		for n < len(raw) {
			var m int
			m, err = wrap.Read(raw[n:])
			n += m
			if err != nil {
				return nil, err
			}
			if n > 0 && raw[n-1] == '\n' {
				break
			}
		}
		slave, resp, err = asciiUnframe(raw[:n])
	} else {
		// exception responses are 2-byte PDUs; read the success length
		// and settle for an exception frame if that is what arrived
		want := respLen + 3 // slave + pdu + crc16
		raw := make([]byte, want)
		n := 0
		for n < want {
			var m int
			m, err = wrap.Read(raw[n:])
			n += m
			if n >= 5 && raw[1]&0x80 != 0 {
				// exception frames are always 5 bytes
				n = 5
				err = nil
				break
			}
			if err != nil {
				return nil, err
			}
		}
		slave, resp, err = rtuUnframe(raw[:n])
	}
	if err != nil {
		return nil, err
	}
	if slave != c.slave {
		err = ErrSlaveMismatch
		return nil, err
	}
	if len(resp) >= 2 && resp[0]&0x80 != 0 {
		code := resp[1]
		if msg, ok := exceptions[code]; ok {
			err = fmt.Errorf("modbus exception %d: %s", code, msg)
		} else {
			err = fmt.Errorf("modbus exception %d", code)
		}
		return nil, err
	}
	return resp, nil
}
