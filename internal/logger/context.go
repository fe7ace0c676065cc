package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries the fields the context-aware logging API attaches to
// every record emitted while handling a particular connection or request,
// so a caller doesn't have to thread connection id/CCD id/RRN through every
// log call by hand.
type LogContext struct {
	ConnectionID string
	CCD          uint32
	RRN          uint32
	Counter      uint32
	StartTime    time.Time
}

// NewLogContext returns a LogContext stamped with the current time.
func NewLogContext(connectionID string) *LogContext {
	return &LogContext{ConnectionID: connectionID, StartTime: time.Now()}
}

// WithContext returns a copy of ctx carrying lc.
func (lc *LogContext) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext extracts the LogContext stored in ctx, or nil if none is set.
func FromContext(ctx context.Context) *LogContext {
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// Clone returns a copy of lc, so a caller can branch fields for a
// sub-operation without mutating the parent's context.
func (lc *LogContext) Clone() *LogContext {
	clone := *lc
	return &clone
}

// WithCCD sets the target CCD id and returns lc for chaining.
func (lc *LogContext) WithCCD(ccd uint32) *LogContext {
	lc.CCD = ccd
	return lc
}

// WithRRN sets the RRN id and outbound counter for the exchange being
// logged and returns lc for chaining.
func (lc *LogContext) WithRRN(rrn, counter uint32) *LogContext {
	lc.RRN = rrn
	lc.Counter = counter
	return lc
}

// DurationMs returns the elapsed time since lc.StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
