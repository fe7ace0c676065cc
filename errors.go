package pspproxy

import "github.com/PSPReverse/libpspproxy/internal/perr"

// Kind classifies a pspproxy error, usable with errors.As against *Error.
type Kind = perr.Kind

const (
	TransportFailure  = perr.TransportFailure
	Timeout           = perr.Timeout
	ProtocolViolation = perr.ProtocolViolation
	PeerReset         = perr.PeerReset
	RequestRejected   = perr.RequestRejected
	ArgumentInvalid   = perr.ArgumentInvalid
)

// Error is the error type every pspproxy operation returns on failure.
type Error = perr.Error

// RejectedError carries the stub's non-zero return code for a rejected
// request, retrievable via errors.As.
type RejectedError = perr.RejectedError

// Sentinels usable with errors.Is for kind-only matching, e.g.
// errors.Is(err, pspproxy.ErrPeerReset).
var (
	ErrTransportFailure  = perr.ErrTransportFailure
	ErrTimeout           = perr.ErrTimeout
	ErrProtocolViolation = perr.ErrProtocolViolation
	ErrPeerReset         = perr.ErrPeerReset
	ErrRequestRejected   = perr.ErrRequestRejected
	ErrArgumentInvalid   = perr.ErrArgumentInvalid
)
