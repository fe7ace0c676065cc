// Package transport implements the byte-stream abstraction the PDU engine
// runs on top of (spec section 4.A): a small capability interface rather
// than a shared vtable, so TCP, serial, and flash-emulator backends can
// each implement only what they naturally support.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by any operation on a transport that has already
// been closed or interrupted.
var ErrClosed = errors.New("transport: closed")

// Transport is the capability set the PDU engine needs from a byte stream:
// non-blocking peek, blocking read with deadline, blocking write, a way to
// wait for readability, and a way for another goroutine to cancel an
// in-progress wait. No transport is required to implement every method
// meaningfully beyond satisfying the interface — e.g. the flash ring-buffer
// backend's Poll degrades to a fixed poll interval rather than a true
// readiness wait.
type Transport interface {
	// Peek reports how many bytes are currently available to read without
	// blocking, or an error if the check itself failed.
	Peek() (int, error)

	// Read blocks until at least one byte is available or the deadline
	// carried by ctx elapses, then reads into buf and returns the count.
	Read(ctx context.Context, buf []byte) (int, error)

	// Write blocks until buf has been written in full.
	Write(buf []byte) error

	// Poll blocks until data is available to read, ctx is done, or
	// Interrupt is called, whichever happens first.
	Poll(ctx context.Context) error

	// Interrupt unblocks any goroutine currently inside Poll or Read,
	// causing it to return promptly with an error. It is the only
	// cross-goroutine cancellation path into a Transport (spec section 5).
	Interrupt()

	// Close releases the underlying resource. Subsequent calls return
	// ErrClosed.
	Close() error
}

// Error wraps a failure observed at the transport layer, keeping the
// underlying cause available via Unwrap for errors.Is/As.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("transport: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// WithDeadline derives a context bounded by timeoutMs (0 means no
// additional bound beyond ctx's own deadline, if any).
func WithDeadline(ctx context.Context, timeoutMs int) (context.Context, context.CancelFunc) {
	if timeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
}
