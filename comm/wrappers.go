package comm

import (
	"io"
	"time"
)

// Terminator decorates a ReadWriter with the instrument's framing bytes.
// Writes have the Tx terminator appended; Reads consume up to and including
// the Rx terminator, which is stripped from the returned data.
type Terminator struct {
	rw     io.ReadWriter
	rx, tx byte
}

// NewTerminator returns a Terminator wrapping rw with the given Rx and Tx
// termination bytes.
func NewTerminator(rw io.ReadWriter, rx, tx byte) *Terminator {
	return &Terminator{rw: rw, rx: rx, tx: tx}
}

// Write sends b followed by the Tx terminator.
func (t *Terminator) Write(b []byte) (int, error) {
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	buf[len(b)] = t.tx
	n, err := t.rw.Write(buf)
	if n > len(b) {
		n = len(b)
	}
	return n, err
}

// Read fills p up to the Rx terminator.  The terminator is consumed from
// the stream but not included in the returned count.  If p fills before
// the terminator is seen, ErrTerminatorNotFound is returned.
func (t *Terminator) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := t.rw.Read(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n > 0 && p[total-1] == t.rx {
			return total - 1, nil
		}
	}
	return total, ErrTerminatorNotFound
}

// deadliner is the subset of net.Conn needed to arm a timeout.
type deadliner interface {
	SetDeadline(time.Time) error
}

// SetDeadline passes the deadline through to the wrapped connection if it
// supports one.
func (t *Terminator) SetDeadline(tt time.Time) error {
	if d, ok := t.rw.(deadliner); ok {
		return d.SetDeadline(tt)
	}
	return nil
}

// NewTimeout arms a deadline of now+timeout on rw if the underlying
// connection supports deadlines (TCP does, serial ports get their timeout
// from the port config and pass through unchanged).
func NewTimeout(rw io.ReadWriter, timeout time.Duration) (io.ReadWriter, error) {
	if d, ok := rw.(deadliner); ok {
		err := d.SetDeadline(time.Now().Add(timeout))
		return rw, err
	}
	return rw, nil
}
