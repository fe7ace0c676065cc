// Package engine implements the PDU engine (spec section 4.F): the
// connect handshake, the single-shot request/response correlator,
// automatic chunking of generic address transfers, asynchronous
// notification dispatch, WaitForIrq, and the CodeModLoad/Exec runloop.
package engine

import "github.com/PSPReverse/libpspproxy/pkg/allocator"

// ConnState is a sum type over the engine's connection state (design note:
// a bool "connected" flag would let Connected-only fields be read before
// they are valid; this makes that a type error instead).
type ConnState struct {
	connected bool
	*Connected
}

// Connected holds everything only meaningful once a ConnectResponse has
// been validated.
type Connected struct {
	CbPduMax      uint32
	ScratchStart  uint32
	ScratchLength uint32
	CSysSockets   uint32
	CCcdsPerSocket uint32
	CCcds          uint32

	CBeaconsSeen uint32

	// Allocator is created lazily by Engine.Allocator the first time the
	// proxy façade's Alloc or Free needs it; stored here so the engine owns exactly one instance per
	// connection, matching spec section 4.I ("initialized lazily the
	// first time Alloc is called").
	Allocator *allocator.Allocator
}

// IsConnected reports whether the handshake has completed.
func (s ConnState) IsConnected() bool { return s.connected }

func disconnected() ConnState { return ConnState{} }

func connected(c *Connected) ConnState {
	return ConnState{connected: true, Connected: c}
}
