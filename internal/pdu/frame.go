package pdu

import (
	"github.com/PSPReverse/libpspproxy/internal/wire"
)

// Frame is a fully parsed PDU: header fields plus the unpadded payload.
type Frame struct {
	Counter     uint32
	RRN         RRN
	TargetCCDID uint32
	TimestampMs uint32
	RequestRC   uint32
	Payload     []byte
}

// Direction selects which magic pair an emitter or receiver uses.
type Direction int

const (
	// HostToStub is used by the engine when writing requests.
	HostToStub Direction = iota
	// StubToHost is used by the engine when validating inbound frames.
	StubToHost
)

func startMagic(d Direction) uint32 {
	if d == HostToStub {
		return wire.MagicHostToStubStart
	}
	return wire.MagicStubToHostStart
}

func endMagic(d Direction) uint32 {
	if d == HostToStub {
		return wire.MagicHostToStubEnd
	}
	return wire.MagicStubToHostEnd
}

// Writer is satisfied by any transport able to accept a blocking write of a
// complete byte slice.
type Writer interface {
	Write(buf []byte) error
}

// Emit builds and writes a complete PDU frame for the given counter, RRN,
// target CCD, and payload. The payload is padded to an 8-byte boundary with
// zero bytes before the checksum is computed, matching spec section 6.
func Emit(w Writer, dir Direction, counter uint32, id RRN, ccd uint32, timestampMs uint32, requestRC uint32, payload []byte) error {
	pad := make([]byte, wire.PadLen(len(payload)))

	h := wire.Header{
		StartMagic:  startMagic(dir),
		PayloadLen:  uint32(len(payload)),
		Counter:     counter,
		RRN:         uint32(id),
		TargetCCDID: ccd,
		TimestampMs: timestampMs,
		RequestRC:   requestRC,
	}
	headerBytes := h.Encode()

	f := wire.Footer{
		Checksum: wire.Checksum(headerBytes, payload, pad),
		EndMagic: endMagic(dir),
	}

	if err := w.Write(headerBytes); err != nil {
		return err
	}
	if len(payload) > 0 {
		if err := w.Write(payload); err != nil {
			return err
		}
	}
	if len(pad) > 0 {
		if err := w.Write(pad); err != nil {
			return err
		}
	}
	return w.Write(f.Encode())
}

// EmitBytes renders a complete frame into a single contiguous byte slice,
// useful for tests and for transports that prefer one write call.
func EmitBytes(dir Direction, counter uint32, id RRN, ccd uint32, timestampMs uint32, requestRC uint32, payload []byte) []byte {
	var buf sliceWriter
	_ = Emit(&buf, dir, counter, id, ccd, timestampMs, requestRC, payload)
	return buf
}

type sliceWriter []byte

func (s *sliceWriter) Write(buf []byte) error {
	*s = append(*s, buf...)
	return nil
}
