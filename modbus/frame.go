package modbus

import (
	"github.com/snksoft/crc"
)

const hextable = "0123456789ABCDEF"

// lrc computes the longitudinal redundancy check over the unframed
// message: the two's complement of the 8-bit sum of its bytes.
func lrc(msg []byte) byte {
	var sum byte
	for _, b := range msg {
		sum += b
	}
	return byte(-int8(sum))
}

// hexVal decodes one uppercase or lowercase hex digit.
func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}

// asciiFrame wraps slave+pdu in ASCII framing:
// ':' <hex payload> <hex LRC> CR LF
func asciiFrame(slave byte, pdu []byte) []byte {
	payload := make([]byte, 0, len(pdu)+2)
	payload = append(payload, slave)
	payload = append(payload, pdu...)
	payload = append(payload, lrc(payload))

	out := make([]byte, 0, 1+2*len(payload)+2)
	out = append(out, ':')
	for _, b := range payload {
		out = append(out, hextable[b>>4], hextable[b&0x0f])
	}
	out = append(out, '\r', '\n')
	return out
}

// asciiUnframe validates the framing and LRC of an ASCII response and
// returns the slave address and PDU.
func asciiUnframe(frame []byte) (byte, []byte, error) {
	// minimal frame: ':' + slave + fn + lrc (3 bytes hex) + CRLF
	if len(frame) < 9 || frame[0] != ':' {
		return 0, nil, ErrShortResponse
	}
	end := len(frame)
	for end > 0 && (frame[end-1] == '\r' || frame[end-1] == '\n') {
		end--
	}
	hexPart := frame[1:end]
	if len(hexPart)%2 != 0 {
		return 0, nil, ErrShortResponse
	}
	payload := make([]byte, len(hexPart)/2)
	for i := 0; i < len(payload); i++ {
		hi, ok1 := hexVal(hexPart[2*i])
		lo, ok2 := hexVal(hexPart[2*i+1])
		if !ok1 || !ok2 {
			return 0, nil, ErrShortResponse
		}
		payload[i] = hi<<4 | lo
	}
	body := payload[:len(payload)-1]
	if lrc(body) != payload[len(payload)-1] {
		return 0, nil, ErrChecksumMismatch
	}
	return body[0], body[1:], nil
}

// rtuFrame wraps slave+pdu in RTU framing: payload + CRC-16, low byte
// first.
func rtuFrame(slave byte, pdu []byte) []byte {
	out := make([]byte, 0, len(pdu)+3)
	out = append(out, slave)
	out = append(out, pdu...)
	sum := uint16(crc.CalculateCRC(crcParams, out))
	out = append(out, byte(sum), byte(sum>>8))
	return out
}

// rtuUnframe validates the CRC of an RTU response and returns the slave
// address and PDU.
func rtuUnframe(frame []byte) (byte, []byte, error) {
	if len(frame) < 4 {
		return 0, nil, ErrShortResponse
	}
	body := frame[:len(frame)-2]
	sum := uint16(crc.CalculateCRC(crcParams, body))
	if frame[len(frame)-2] != byte(sum) || frame[len(frame)-1] != byte(sum>>8) {
		return 0, nil, ErrChecksumMismatch
	}
	return body[0], body[1:], nil
}
