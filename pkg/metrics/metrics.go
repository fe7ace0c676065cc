// Package metrics defines the observability surface the engine and CLI
// report through, kept as a small interface (spec section 10) so it can be
// disabled with zero overhead by passing nil, the same pattern the
// teacher's pkg/metrics interfaces use.
package metrics

import "time"

// Metrics is implemented by pkg/metrics/prometheus's collector. Pass nil
// anywhere a Metrics is accepted to disable collection.
type Metrics interface {
	// RecordRequest records a completed request/response round trip: the
	// RRN name, its duration, and the stub rc (0 on success).
	RecordRequest(rrn string, duration time.Duration, stubRC uint32)

	// RecordChunk records one chunk of a chunked Transfer: its direction
	// ("read" or "write") and byte count.
	RecordChunk(direction string, bytes int)

	// RecordNotification records an inbound notification by kind
	// ("beacon", "log", "out-buf", "irq-change", "codemod-exec-finished").
	RecordNotification(kind string)

	// RecordIRQChange records an IrqChange notification for ccd.
	RecordIRQChange(ccd uint32)

	// SetConnected reports the engine's current connection state.
	SetConnected(connected bool)
}

// noop is the Metrics used when metrics collection is disabled.
type noop struct{}

func (noop) RecordRequest(string, time.Duration, uint32) {}
func (noop) RecordChunk(string, int)                     {}
func (noop) RecordNotification(string)                   {}
func (noop) RecordIRQChange(uint32)                       {}
func (noop) SetConnected(bool)                            {}

// Noop is a Metrics that discards everything, used when no collector was
// configured so callers don't need a nil check on every call.
var Noop Metrics = noop{}
