package engine

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/PSPReverse/libpspproxy/internal/transport"
)

// fakeTransport is an in-memory, single-consumer Transport used to drive
// the engine end-to-end without a real socket. inbox holds bytes the test
// has queued for the engine to read (via Feed); outbox accumulates every
// byte the engine writes, so a test can decode what the engine emitted.
type fakeTransport struct {
	mu        sync.Mutex
	inbox     bytes.Buffer
	outbox    bytes.Buffer
	interrupt chan struct{}
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{interrupt: make(chan struct{}, 1)}
}

// Feed appends bytes for the engine's next Read to observe.
func (f *fakeTransport) Feed(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox.Write(b)
}

// Written returns everything the engine has written so far.
func (f *fakeTransport) Written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.outbox.Bytes()...)
}

func (f *fakeTransport) Peek() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inbox.Len(), nil
}

func (f *fakeTransport) Read(ctx context.Context, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, transport.ErrClosed
	}
	return f.inbox.Read(buf)
}

func (f *fakeTransport) Write(buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbox.Write(buf)
	return nil
}

func (f *fakeTransport) Poll(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		f.mu.Lock()
		n := f.inbox.Len()
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return transport.ErrClosed
		}
		if n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.interrupt:
			return transport.ErrClosed
		case <-ticker.C:
		}
	}
}

func (f *fakeTransport) Interrupt() {
	select {
	case f.interrupt <- struct{}{}:
	default:
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
