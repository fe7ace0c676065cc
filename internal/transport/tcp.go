package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// errUnsupported is returned by Peek when the wrapped net.Conn does not
// expose a raw syscall.Conn (e.g. some test doubles).
var errUnsupported = errors.New("transport: conn does not support FIONREAD peek")

// TCP implements Transport over a plain net.Conn. Peek reports the kernel's
// socket receive-queue depth via FIONREAD so the engine can decide whether a
// read would block, matching the teacher's explicit-syscall style rather
// than inferring availability from a buffered reader.
type TCP struct {
	conn net.Conn

	mu        sync.Mutex
	interrupt chan struct{}
	closed    bool
}

// DialTCP connects to addr (host:port), disables Nagle's algorithm (spec
// section 4.B — request/response latency matters more than packing small
// PDUs), and wraps the connection.
func DialTCP(ctx context.Context, addr string) (*TCP, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &Error{Op: "dial", Err: err}
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, &Error{Op: "dial", Err: err}
		}
	}
	return NewTCP(conn), nil
}

// NewTCP wraps an already-established connection.
func NewTCP(conn net.Conn) *TCP {
	return &TCP{conn: conn, interrupt: make(chan struct{}, 1)}
}

func (t *TCP) Peek() (int, error) {
	sc, ok := t.conn.(syscall.Conn)
	if !ok {
		return 0, &Error{Op: "peek", Err: errUnsupported}
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, &Error{Op: "peek", Err: err}
	}
	var n int
	var ctlErr error
	err = raw.Control(func(fd uintptr) {
		n, ctlErr = unix.IoctlGetInt(int(fd), unix.FIONREAD)
	})
	if err != nil {
		return 0, &Error{Op: "peek", Err: err}
	}
	if ctlErr != nil {
		return 0, &Error{Op: "peek", Err: ctlErr}
	}
	return n, nil
}

func (t *TCP) Read(ctx context.Context, buf []byte) (int, error) {
	deadline, ok := ctx.Deadline()
	if ok {
		_ = t.conn.SetReadDeadline(deadline)
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}
	n, err := t.conn.Read(buf)
	if err != nil {
		return n, &Error{Op: "read", Err: err}
	}
	return n, nil
}

func (t *TCP) Write(buf []byte) error {
	_, err := t.conn.Write(buf)
	if err != nil {
		return &Error{Op: "write", Err: err}
	}
	return nil
}

// Poll waits until FIONREAD reports at least one byte, ctx is done, or
// Interrupt fires. It backs off with a short sleep between checks rather
// than a true edge-triggered wait, which keeps it portable across the
// net.Conn types this transport wraps.
func (t *TCP) Poll(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		n, err := t.Peek()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return &Error{Op: "poll", Err: ctx.Err()}
		case <-t.interrupt:
			return &Error{Op: "poll", Err: ErrClosed}
		case <-ticker.C:
		}
	}
}

func (t *TCP) Interrupt() {
	select {
	case t.interrupt <- struct{}{}:
	default:
	}
	// Also unstick any in-flight Read by forcing its deadline into the past.
	_ = t.conn.SetReadDeadline(time.Now())
}

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.closed = true
	return t.conn.Close()
}
