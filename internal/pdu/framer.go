package pdu

import (
	"github.com/PSPReverse/libpspproxy/internal/wire"
)

// state is one of the four receive FSM states from spec section 4.E.
type state int

const (
	stateSeekMagic state = iota
	stateHeader
	statePayload
	stateFooter
)

// MinRecvBuffer is the smallest recv buffer capacity the framer accepts;
// spec section 3 requires inbound payloads to fit within a buffer of at
// least this size minus header and footer.
const MinRecvBuffer = 4096

// Framer implements the PDU receive state machine: magic/header/payload/
// footer framing with byte-wise resync on SeekMagic failures and full
// validation (magic, length bound, RRN range, CCD bound, and — once
// connected — strict PDU counter sequencing) on Header completion.
//
// A single Framer is owned by one engine and fed bytes as they arrive from
// the transport; it has no knowledge of the transport itself.
type Framer struct {
	dir          Direction
	maxPayload   int
	state        state
	acc          []byte
	need         int
	hdr          wire.Header
	payload      []byte
	connected    bool
	cCcds        uint32
	expectedNext uint32
}

// NewFramer creates a Framer expecting frames from dir with a recv buffer
// of the given capacity (must be >= MinRecvBuffer).
func NewFramer(dir Direction, recvBufCap int) *Framer {
	if recvBufCap < MinRecvBuffer {
		recvBufCap = MinRecvBuffer
	}
	f := &Framer{
		dir:        dir,
		maxPayload: recvBufCap - wire.HeaderSize - wire.FooterSize,
		cCcds:      1, // the handshake frame passes validation before topology is known
	}
	f.reset()
	return f
}

// SetConnected records the topology learned from ConnectResponse and begins
// strict PDU counter enforcement on every frame received from this point on.
func (f *Framer) SetConnected(cCcds uint32) {
	f.connected = true
	f.cCcds = cCcds
}

// Fail discards any partially assembled frame and turns off PDU counter
// enforcement. It does not stop later frames from being accepted; the engine
// refuses further operations through its own failed flag. Used when a
// PeerReset has been observed.
func (f *Framer) Fail() {
	f.connected = false
	f.state = stateSeekMagic
	f.acc = nil
	f.need = 0
}

func (f *Framer) reset() {
	f.state = stateSeekMagic
	f.acc = f.acc[:0]
	f.need = 4
	f.payload = nil
}

func (f *Framer) wantMagic() uint32 {
	if f.dir == HostToStub {
		// The engine that emits as HostToStub expects replies StubToHost.
		return wire.MagicStubToHostStart
	}
	return wire.MagicHostToStubStart
}

func (f *Framer) wantEndMagic() uint32 {
	if f.dir == HostToStub {
		return wire.MagicStubToHostEnd
	}
	return wire.MagicHostToStubEnd
}

// Feed pushes newly-arrived bytes through the FSM. It returns every frame
// completed during this call, in arrival order. There is no error return:
// malformed frames are dropped and the FSM resyncs from SeekMagic.
func (f *Framer) Feed(data []byte) []Frame {
	var out []Frame
	for len(data) > 0 {
		switch f.state {
		case stateSeekMagic:
			data = f.feedSeekMagic(data)
		case stateHeader:
			data = f.feedHeader(data)
		case statePayload:
			data = f.feedPayload(data)
		case stateFooter:
			var fr *Frame
			data, fr = f.feedFooter(data)
			if fr != nil {
				out = append(out, *fr)
			}
		}
	}
	return out
}

// feedSeekMagic accumulates 4 bytes and resyncs byte-wise on mismatch.
func (f *Framer) feedSeekMagic(data []byte) []byte {
	for len(data) > 0 && len(f.acc) < 4 {
		f.acc = append(f.acc, data[0])
		data = data[1:]
	}
	if len(f.acc) < 4 {
		return data
	}
	if littleEndianUint32(f.acc) == f.wantMagic() {
		f.state = stateHeader
		f.need = wire.HeaderSize - 4
		return data
	}
	// Resync: drop the oldest byte and keep scanning from the next one.
	f.acc = append(f.acc[:0], f.acc[1:]...)
	return data
}

func (f *Framer) feedHeader(data []byte) []byte {
	n := f.need
	if n > len(data) {
		n = len(data)
	}
	f.acc = append(f.acc, data[:n]...)
	data = data[n:]
	f.need -= n
	if f.need > 0 {
		return data
	}

	hdr, err := wire.DecodeHeader(f.acc)
	if err != nil || !f.validateHeader(hdr) {
		f.reset()
		return data
	}
	f.hdr = hdr

	payloadLen := int(hdr.PayloadLen)
	padLen := wire.PadLen(payloadLen)
	if payloadLen == 0 {
		f.state = stateFooter
		f.need = wire.FooterSize
		f.payload = nil
	} else {
		f.state = statePayload
		f.need = payloadLen + padLen
		f.payload = make([]byte, 0, payloadLen+padLen)
	}
	return data
}

func (f *Framer) validateHeader(hdr wire.Header) bool {
	if hdr.StartMagic != f.wantMagic() {
		return false
	}
	if int(hdr.PayloadLen) > f.maxPayload {
		return false
	}
	id := RRN(hdr.RRN)
	if !id.IsResponse() && !id.IsNotification() {
		return false
	}
	if f.connected && hdr.Counter != f.expectedNext {
		return false
	}
	if hdr.TargetCCDID >= f.cCcds {
		return false
	}
	return true
}

func (f *Framer) feedPayload(data []byte) []byte {
	n := f.need
	if n > len(data) {
		n = len(data)
	}
	f.payload = append(f.payload, data[:n]...)
	data = data[n:]
	f.need -= n
	if f.need > 0 {
		return data
	}
	f.state = stateFooter
	f.need = wire.FooterSize
	return data
}

func (f *Framer) feedFooter(data []byte) ([]byte, *Frame) {
	n := f.need
	if n > len(data) {
		n = len(data)
	}
	f.acc = append(f.acc, data[:n]...)
	data = data[n:]
	f.need -= n
	if f.need > 0 {
		return data, nil
	}

	// f.acc currently holds the full header bytes (start magic included)
	// followed by footer bytes; rebuild header bytes canonically rather
	// than relying on the accumulator shape.
	footerBytes := f.acc[len(f.acc)-wire.FooterSize:]
	footer, err := wire.DecodeFooter(footerBytes)
	if err != nil {
		f.reset()
		return data, nil
	}

	payloadLen := int(f.hdr.PayloadLen)
	padLen := wire.PadLen(payloadLen)
	var dataPart, padPart []byte
	if payloadLen > 0 {
		dataPart = f.payload[:payloadLen]
		padPart = f.payload[payloadLen : payloadLen+padLen]
	}

	headerBytes := f.hdr.Encode()
	ok := footer.EndMagic == f.wantEndMagic() &&
		wire.VerifyChecksum(headerBytes, dataPart, padPart, footer.Checksum)

	if !ok {
		f.reset()
		return data, nil
	}

	f.expectedNext = f.hdr.Counter + 1

	frame := Frame{
		Counter:     f.hdr.Counter,
		RRN:         RRN(f.hdr.RRN),
		TargetCCDID: f.hdr.TargetCCDID,
		TimestampMs: f.hdr.TimestampMs,
		RequestRC:   f.hdr.RequestRC,
		Payload:     dataPart,
	}
	f.reset()
	return data, &frame
}

func littleEndianUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
