package comm_test

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/btcardwell/Lab5015Utils/comm"
)

// tcpEchoServer returns the address of a loopback echo server for the
// duration of the test.
func tcpEchoServer(t *testing.T) string {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal("could not listen, test aborted:", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { io.Copy(conn, conn) }()
		}
	}()
	return ln.Addr().String()
}

func TestPoolLeasesToCapacity(t *testing.T) {
	addr := tcpEchoServer(t)
	maker := func() (io.ReadWriteCloser, error) {
		return net.Dial("tcp", addr)
	}
	pool := comm.NewPool(3, time.Second, maker)
	for i := 0; i < 3; i++ {
		conn, err := pool.Get()
		if err != nil {
			t.Fatal("could not get connection:", err)
		}
		if conn == nil {
			t.Fatal("nil connection without error")
		}
	}
	if pool.Active() != 3 {
		t.Errorf("expected 3 active leases, got %d", pool.Active())
	}
}

func TestPoolReusesReturnedConns(t *testing.T) {
	addr := tcpEchoServer(t)
	maker := func() (io.ReadWriteCloser, error) {
		return net.Dial("tcp", addr)
	}
	pool := comm.NewPool(3, time.Minute, maker)
	for i := 0; i < 3; i++ {
		conn, err := pool.Get()
		if err != nil {
			t.Fatal("could not get connection:", err)
		}
		pool.Put(conn)
	}
	if pool.Size() != 1 {
		t.Errorf("expected the same connection to be reused, pool owns %d", pool.Size())
	}
}

func TestPoolMaintainsSizeWhenOversubscribed(t *testing.T) {
	addr := tcpEchoServer(t)
	maker := func() (io.ReadWriteCloser, error) {
		return net.Dial("tcp", addr)
	}
	pool := comm.NewPool(2, time.Second, maker)
	for i := 0; i < 2; i++ {
		if _, err := pool.Get(); err != nil {
			t.Fatal("could not get connection:", err)
		}
	}
	extra := make(chan io.ReadWriter, 1)
	go func() {
		rw, _ := pool.Get()
		extra <- rw
	}()
	select {
	case <-extra:
		t.Fatal("failed to prevent pool overflow")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestPoolDestroyedConnsAreNotReused(t *testing.T) {
	addr := tcpEchoServer(t)
	maker := func() (io.ReadWriteCloser, error) {
		return net.Dial("tcp", addr)
	}
	pool := comm.NewPool(1, time.Minute, maker)
	conn, err := pool.Get()
	if err != nil {
		t.Fatal("could not get connection:", err)
	}
	pool.ReturnWithError(conn, io.ErrUnexpectedEOF)
	if pool.Size() != 0 {
		t.Errorf("expected destroyed connection to leave the pool, size %d", pool.Size())
	}
}

// rwBuffer is an in-memory ReadWriter with separate rx and tx sides.
type rwBuffer struct {
	rx *bytes.Buffer
	tx *bytes.Buffer
}

func (b rwBuffer) Read(p []byte) (int, error)  { return b.rx.Read(p) }
func (b rwBuffer) Write(p []byte) (int, error) { return b.tx.Write(p) }

func TestTerminatorAppendsOnWrite(t *testing.T) {
	buf := rwBuffer{rx: &bytes.Buffer{}, tx: &bytes.Buffer{}}
	term := comm.NewTerminator(buf, '\n', '\r')
	n, err := term.Write([]byte("read 0 1"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Errorf("expected write count to exclude terminator, got %d", n)
	}
	if got := buf.tx.String(); got != "read 0 1\r" {
		t.Errorf("expected terminated message, got %q", got)
	}
}

func TestTerminatorStripsOnRead(t *testing.T) {
	buf := rwBuffer{rx: bytes.NewBufferString("23.4\n"), tx: &bytes.Buffer{}}
	term := comm.NewTerminator(buf, '\n', '\n')
	p := make([]byte, 64)
	n, err := term.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(p[:n]) != "23.4" {
		t.Errorf("expected terminator stripped, got %q", string(p[:n]))
	}
}

func TestTerminatorMissingTerminator(t *testing.T) {
	buf := rwBuffer{rx: bytes.NewBufferString("garbage"), tx: &bytes.Buffer{}}
	term := comm.NewTerminator(buf, '\n', '\n')
	p := make([]byte, 4)
	_, err := term.Read(p)
	if err != comm.ErrTerminatorNotFound {
		t.Errorf("expected ErrTerminatorNotFound, got %v", err)
	}
}
