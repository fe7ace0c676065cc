// Package pspproxy is the public entry point: New dials a transport from a
// device URI and wraps it in the typed pkg/proxy façade, so embedders don't
// need to reach into internal/transport or internal/engine themselves.
package pspproxy

import (
	"context"

	"github.com/PSPReverse/libpspproxy/internal/hostio"
	"github.com/PSPReverse/libpspproxy/internal/transport"
	"github.com/PSPReverse/libpspproxy/pkg/proxy"
)

// Sink receives host-directed callbacks (log lines, output buffer writes,
// input buffer pumping) during engine operation. A nil Sink is valid and
// makes all callbacks no-ops.
type Sink = hostio.Sink

// Proxy is the connected, typed API most callers drive directly instead of
// talking to internal/engine.
type Proxy = proxy.Proxy

// New dials device (see internal/transport.Open for the accepted URI
// schemes: tcp://, serial://, em100tcp://) and returns a Proxy wrapping it.
// The caller still must call Connect before issuing any operation.
func New(ctx context.Context, device string, sink Sink) (*Proxy, error) {
	tr, err := transport.Open(ctx, device)
	if err != nil {
		return nil, err
	}
	return proxy.New(tr, sink), nil
}
