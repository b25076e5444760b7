/*Package comm provides connection pooling and io wrappers for lab hardware.

Instruments in the test stand are reached either over TCP (directly, or
through a network-attached serial proxy) or over a local RS-232 link.  Both
are modeled as io.ReadWriteCloser factories (CreationFunc) feeding a Pool.
A driver takes a connection from its pool for the duration of one
transaction and returns it when done; connections that error are destroyed
instead of returned so the next transaction starts fresh.

Most drivers will wrap the raw connection in a Terminator (to frame
messages with the instrument's termination bytes) and a timeout before use.
*/
package comm

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrTerminatorNotFound is generated when the termination byte is not found
// in a response before the read buffer fills.
var ErrTerminatorNotFound = errors.New("termination byte not found in response")

// CreationFunc returns a new connection to a device.  Use a closure to
// encapsulate the address and options needed.
type CreationFunc func() (io.ReadWriteCloser, error)

// Pool holds one or more connections to a device.  Connections are closed
// if unused for the idle timeout and re-opened on demand.  Pools must be
// created with NewPool.
type Pool struct {
	maxSize int
	onLease int
	timeout time.Duration
	conns   chan io.ReadWriteCloser
	timer   *time.Timer
	maker   CreationFunc

	reclaiming bool
	mu         sync.Mutex
}

// NewPool creates a new Pool of up to maxSize connections which are freed
// after all have been idle for timeout.
func NewPool(maxSize int, timeout time.Duration, maker CreationFunc) *Pool {
	p := &Pool{
		maxSize: maxSize,
		timeout: timeout,
		conns:   make(chan io.ReadWriteCloser, maxSize),
		timer:   time.NewTimer(timeout),
		maker:   maker,
	}
	p.timer.Stop() // nothing to reclaim yet
	return p
}

// Get retrieves a connection from the pool, dialing a new one if none are
// idle and the pool is not yet at capacity.  It blocks if all connections
// are leased out.  Return the connection with Put, or Destroy it if it has
// gone bad (e.g., all calls error).  ReturnWithError does the bookkeeping
// for the common defer case.
//
// If the error from Get is non-nil the connection must not be returned to
// the pool.
func (p *Pool) Get() (io.ReadWriter, error) {
	p.timer.Stop()

	p.mu.Lock()
	if len(p.conns) > 0 {
		ret := <-p.conns
		p.onLease++
		p.mu.Unlock()
		return ret, nil
	}
	if p.onLease == p.maxSize {
		// all given out, wait for one to come back.  The lock must be
		// released or Put would deadlock against us.
		p.mu.Unlock()
		ret := <-p.conns
		p.mu.Lock()
		p.onLease++
		p.mu.Unlock()
		return ret, nil
	}
	p.mu.Unlock()
	c, err := p.maker()
	if err == nil {
		p.mu.Lock()
		p.onLease++
		p.mu.Unlock()
	}
	return c, err
}

// Put restores a connection to the pool for reuse.
func (p *Pool) Put(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	p.conns <- rwc
	p.mu.Lock()
	p.onLease--
	idle := len(p.conns) == p.maxSize
	p.mu.Unlock()
	if idle {
		p.startReclaim()
	}
}

// Destroy closes a connection and removes it from the pool's accounting.
// Use instead of Put when the connection has gone bad.
func (p *Pool) Destroy(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	rwc.Close()
	p.mu.Lock()
	p.onLease--
	p.mu.Unlock()
}

// ReturnWithError Puts the connection back if err is nil, else Destroys it.
// Intended for use in a deferred closure at the top of a transaction.
func (p *Pool) ReturnWithError(rw io.ReadWriter, err error) {
	if rw == nil {
		return
	}
	if err != nil {
		p.Destroy(rw)
		return
	}
	p.Put(rw)
}

// Size returns the number of connections owned by the pool, idle or leased.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns) + p.onLease
}

// Active returns the number of connections currently leased out.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onLease
}

// startReclaim spawns a goroutine that closes all idle connections after
// the pool's timeout elapses.
func (p *Pool) startReclaim() {
	p.mu.Lock()
	already := p.reclaiming
	p.reclaiming = true
	p.mu.Unlock()
	if already {
		return
	}
	p.timer.Reset(p.timeout)
	go func() {
		<-p.timer.C
		for {
			select {
			case c := <-p.conns:
				c.Close()
			default:
				p.mu.Lock()
				p.reclaiming = false
				p.mu.Unlock()
				return
			}
		}
	}()
}
