// Package wire implements the bit-exact PDU header/footer layout described
// in spec section 6: little-endian fields, a direction-specific start/end
// magic pair, and a two's-complement checksum computed over the header,
// payload, and zero padding.
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of a PDU header in bytes.
const HeaderSize = 32

// FooterSize is the fixed size of a PDU footer in bytes.
const FooterSize = 8

// Magic pairs are direction-specific sentinels; the exact values are not
// constrained by the host-side spec beyond being 4 bytes and distinct per
// direction, so these are picked to be visually recognizable in captures.
const (
	MagicHostToStubStart uint32 = 0xC0DEBA01
	MagicHostToStubEnd   uint32 = 0xC0DEBA02
	MagicStubToHostStart uint32 = 0xC0DEBA11
	MagicStubToHostEnd   uint32 = 0xC0DEBA12
)

// Header is the fixed 32-byte PDU header, decoded into named fields.
type Header struct {
	StartMagic   uint32
	PayloadLen   uint32
	Counter      uint32
	RRN          uint32
	TargetCCDID  uint32
	TimestampMs  uint32
	RequestRC    uint32
	Reserved     uint32
}

// Encode serializes h into its canonical little-endian 32-byte wire form.
// The byte order is written out explicitly field by field rather than via
// an overlaid struct, per the design note that a C union-style memory
// layout must not be emulated.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.StartMagic)
	binary.LittleEndian.PutUint32(buf[4:8], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[8:12], h.Counter)
	binary.LittleEndian.PutUint32(buf[12:16], h.RRN)
	binary.LittleEndian.PutUint32(buf[16:20], h.TargetCCDID)
	binary.LittleEndian.PutUint32(buf[20:24], h.TimestampMs)
	binary.LittleEndian.PutUint32(buf[24:28], h.RequestRC)
	binary.LittleEndian.PutUint32(buf[28:32], h.Reserved)
	return buf
}

// DecodeHeader parses a 32-byte slice into a Header. It does not validate
// any field beyond the buffer length; validation is the framer's job.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short header: %d bytes, want %d", len(buf), HeaderSize)
	}
	return Header{
		StartMagic:  binary.LittleEndian.Uint32(buf[0:4]),
		PayloadLen:  binary.LittleEndian.Uint32(buf[4:8]),
		Counter:     binary.LittleEndian.Uint32(buf[8:12]),
		RRN:         binary.LittleEndian.Uint32(buf[12:16]),
		TargetCCDID: binary.LittleEndian.Uint32(buf[16:20]),
		TimestampMs: binary.LittleEndian.Uint32(buf[20:24]),
		RequestRC:   binary.LittleEndian.Uint32(buf[24:28]),
		Reserved:    binary.LittleEndian.Uint32(buf[28:32]),
	}, nil
}

// Footer is the fixed 8-byte PDU footer.
type Footer struct {
	Checksum uint32
	EndMagic uint32
}

// Encode serializes f into its canonical little-endian 8-byte wire form.
func (f Footer) Encode() []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.Checksum)
	binary.LittleEndian.PutUint32(buf[4:8], f.EndMagic)
	return buf
}

// DecodeFooter parses an 8-byte slice into a Footer.
func DecodeFooter(buf []byte) (Footer, error) {
	if len(buf) < FooterSize {
		return Footer{}, fmt.Errorf("wire: short footer: %d bytes, want %d", len(buf), FooterSize)
	}
	return Footer{
		Checksum: binary.LittleEndian.Uint32(buf[0:4]),
		EndMagic: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// PadLen returns the number of zero padding bytes needed so that
// payloadLen + PadLen(payloadLen) is a multiple of 8.
func PadLen(payloadLen int) int {
	return (8 - (payloadLen % 8)) % 8
}

// Checksum computes the two's-complement byte-sum checksum over header,
// payload, and padding such that sum(header||payload||padding) +
// checksum == 0 (mod 2^32).
func Checksum(headerBytes, payload, padding []byte) uint32 {
	var sum uint32
	for _, b := range headerBytes {
		sum += uint32(b)
	}
	for _, b := range payload {
		sum += uint32(b)
	}
	for _, b := range padding {
		sum += uint32(b)
	}
	return -sum
}

// VerifyChecksum reports whether sum(header||payload||padding) + checksum
// wraps to zero modulo 2^32.
func VerifyChecksum(headerBytes, payload, padding []byte, checksum uint32) bool {
	var sum uint32
	for _, b := range headerBytes {
		sum += uint32(b)
	}
	for _, b := range payload {
		sum += uint32(b)
	}
	for _, b := range padding {
		sum += uint32(b)
	}
	return sum+checksum == 0
}
