package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/PSPReverse/libpspproxy/internal/pdu"
	"github.com/PSPReverse/libpspproxy/internal/perr"
	"github.com/PSPReverse/libpspproxy/internal/wire"
	"github.com/PSPReverse/libpspproxy/pkg/pspaddr"
)

// decodeWrittenFrames parses a concatenated stream of host-to-stub request
// frames directly off internal/wire, bypassing pdu.Framer: the framer only
// ever accepts response/notification ids (it's built to validate inbound
// traffic), so request frames the engine itself emitted need this
// lower-level decode instead.
func decodeWrittenFrames(buf []byte) []pdu.Frame {
	var out []pdu.Frame
	for len(buf) >= wire.HeaderSize {
		hdr, err := wire.DecodeHeader(buf[:wire.HeaderSize])
		if err != nil {
			break
		}
		buf = buf[wire.HeaderSize:]
		payloadLen := int(hdr.PayloadLen)
		padLen := wire.PadLen(payloadLen)
		if len(buf) < payloadLen+padLen+wire.FooterSize {
			break
		}
		payload := append([]byte(nil), buf[:payloadLen]...)
		buf = buf[payloadLen+padLen+wire.FooterSize:]
		out = append(out, pdu.Frame{
			Counter:     hdr.Counter,
			RRN:         pdu.RRN(hdr.RRN),
			TargetCCDID: hdr.TargetCCDID,
			TimestampMs: hdr.TimestampMs,
			RequestRC:   hdr.RequestRC,
			Payload:     payload,
		})
	}
	return out
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func beaconFrame(counter uint32, cBeaconsSent uint32) []byte {
	return pdu.EmitBytes(pdu.StubToHost, counter, pdu.NotifyBeacon, 0, 0, 0, le32(cBeaconsSent))
}

func connectResponsePayload(cbPduMax, scratchStart, scratchLen, sockets, ccdsPerSocket uint32) []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:4], cbPduMax)
	binary.LittleEndian.PutUint32(buf[4:8], scratchStart)
	binary.LittleEndian.PutUint32(buf[8:12], scratchLen)
	binary.LittleEndian.PutUint32(buf[12:16], sockets)
	binary.LittleEndian.PutUint32(buf[16:20], ccdsPerSocket)
	return buf
}

func respFrame(counter uint32, id pdu.RRN, ccd uint32, rc uint32, payload []byte) []byte {
	return pdu.EmitBytes(pdu.StubToHost, counter, id, ccd, 0, rc, payload)
}

// connectedEngine feeds a full handshake (beacon, ConnectResponse) and
// returns an Engine already in the Connected state, ready for operation
// tests.
func connectedEngine(t *testing.T) (*Engine, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	e := New(tr, nil)

	tr.Feed(beaconFrame(1, 1))
	tr.Feed(respFrame(2, pdu.RespConnect, 0, 0, connectResponsePayload(256, 0x1000, 0x1000, 1, 2)))

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !e.State().IsConnected() {
		t.Fatalf("expected Connected state after handshake")
	}
	return e, tr
}

func TestConnectHandshake(t *testing.T) {
	e, tr := connectedEngine(t)
	if e.State().CCcds != 2 {
		t.Fatalf("CCcds = %d, want 2", e.State().CCcds)
	}
	if e.State().CbPduMax != 256 {
		t.Fatalf("CbPduMax = %d, want 256", e.State().CbPduMax)
	}

	written := tr.Written()
	frames := decodeWrittenFrames(written)
	if len(frames) != 1 || frames[0].RRN != pdu.ReqConnect {
		t.Fatalf("expected exactly one ReqConnect frame written, got %+v", frames)
	}
}

func TestSingleShotRequestResponse(t *testing.T) {
	e, tr := connectedEngine(t)

	// Queue the CoprocRead response before issuing the call: the engine
	// blocks on waitForResponse synchronously, so inbound bytes must
	// already be sitting in the fake transport's buffer.
	tr.Feed(respFrame(3, pdu.RespCoprocRead, 1, 0, []byte{0xAA, 0xBB, 0xCC, 0xDD}))

	v, err := e.CoprocRead(context.Background(), 1, 0x1234, 4)
	if err != nil {
		t.Fatalf("CoprocRead: %v", err)
	}
	want := uint64(0xDDCCBBAA)
	if v != want {
		t.Fatalf("CoprocRead = %#x, want %#x", v, want)
	}
}

func TestRequestRejectedSurfacesStubRC(t *testing.T) {
	e, tr := connectedEngine(t)
	tr.Feed(respFrame(3, pdu.RespBranchTo, 0, 7, nil))

	err := e.BranchTo(context.Background(), 0, 0x1000)
	if err == nil {
		t.Fatalf("expected an error")
	}
	var rej *perr.RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *perr.RejectedError, got %T: %v", err, err)
	}
	if rej.StubRC != 7 {
		t.Fatalf("StubRC = %d, want 7", rej.StubRC)
	}
	if e.LastRC() != 7 {
		t.Fatalf("LastRC() = %d, want 7", e.LastRC())
	}
}

func TestChunkedTransferSplitsAcrossMultipleRequests(t *testing.T) {
	e, tr := connectedEngine(t)
	// chunkCap = cbPduMax(256) - frameOverhead(40) - requestHdrOverhead(20) = 196
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}

	addr := pspaddr.SMN(0, 0x1000)
	// Two chunks: 196 then 104. Queue both RespXfer acks up front.
	tr.Feed(respFrame(3, pdu.RespXfer, 0, 0, nil))
	tr.Feed(respFrame(4, pdu.RespXfer, 0, 0, nil))

	err := e.Transfer(context.Background(), addr, pspaddr.FlagWrite|pspaddr.FlagIncrAddr, 1, uint32(len(data)), data, nil)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	// The outbox also holds the handshake's ReqConnect; keep only chunks.
	var frames []pdu.Frame
	for _, f := range decodeWrittenFrames(tr.Written()) {
		if f.RRN == pdu.ReqXfer {
			frames = append(frames, f)
		}
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 chunk requests, got %d", len(frames))
	}
	if len(frames[0].Payload)-xferRequestHeaderSize+len(frames[1].Payload)-xferRequestHeaderSize != len(data) {
		t.Fatalf("chunk payload lengths don't sum to original data length")
	}
}

func TestNotificationsInterleaveDuringResponseWait(t *testing.T) {
	e, tr := connectedEngine(t)
	var logged []string
	e.sink = sinkRecorder{logs: &logged}

	// A LogMsg notification arrives ahead of the actual response.
	tr.Feed(pdu.EmitBytes(pdu.StubToHost, 3, pdu.NotifyLogMsg, 0, 0, 0, []byte("hello\n")))
	tr.Feed(respFrame(4, pdu.RespBranchTo, 0, 0, nil))

	if err := e.BranchTo(context.Background(), 0, 0x2000); err != nil {
		t.Fatalf("BranchTo: %v", err)
	}
	if len(logged) != 1 || logged[0] != "hello" {
		t.Fatalf("logged = %v, want [hello]", logged)
	}
}

type sinkRecorder struct {
	logs *[]string
}

func (s sinkRecorder) LogMsg(line string)         { *s.logs = append(*s.logs, line) }
func (sinkRecorder) OutBufWrite(uint32, []byte)   {}
func (sinkRecorder) InBufPeek(uint32) int         { return 0 }
func (sinkRecorder) InBufRead(uint32, []byte) int { return 0 }

func TestPeerResetAfterConnectPermanentlyFailsEngine(t *testing.T) {
	e, tr := connectedEngine(t)

	// A Beacon whose count skips ahead signals the stub reset.
	tr.Feed(beaconFrame(3, 99))
	// Any subsequent request should observe the fatal PeerReset while
	// draining this notification during its response wait.
	tr.Feed(respFrame(4, pdu.RespBranchTo, 0, 0, nil))

	err := e.BranchTo(context.Background(), 0, 0)
	if err == nil {
		t.Fatalf("expected PeerReset error")
	}
	if !errors.Is(err, perr.ErrPeerReset) {
		t.Fatalf("expected ErrPeerReset, got %v", err)
	}

	// The engine must now refuse all further operations permanently.
	err2 := e.BranchTo(context.Background(), 0, 0)
	if !errors.Is(err2, perr.ErrPeerReset) {
		t.Fatalf("expected permanent PeerReset failure on subsequent call, got %v", err2)
	}
}

func TestWaitForIrqDrainsBeforeBlocking(t *testing.T) {
	e, tr := connectedEngine(t)
	_ = tr

	e.irqTable.Apply(1, true, false)

	state, ok, err := e.WaitForIrq(context.Background(), 0)
	if err != nil {
		t.Fatalf("WaitForIrq: %v", err)
	}
	if !ok {
		t.Fatalf("expected a drained pending change")
	}
	if state.CCD != 1 || !state.IRQ {
		t.Fatalf("unexpected state: %+v", state)
	}

	// Nothing left pending, and timeoutMs<=0 means "no change" rather
	// than a block.
	_, ok2, err := e.WaitForIrq(context.Background(), 0)
	if err != nil {
		t.Fatalf("WaitForIrq (empty): %v", err)
	}
	if ok2 {
		t.Fatalf("expected no pending change")
	}
}

func TestWaitForIrqBlocksUntilNotificationArrives(t *testing.T) {
	e, tr := connectedEngine(t)

	go func() {
		time.Sleep(5 * time.Millisecond)
		tr.Feed(pdu.EmitBytes(pdu.StubToHost, 3, pdu.NotifyIrqChange, 0, 0, 0, append(le32(1), le32(1)...)))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, ok, err := e.WaitForIrq(ctx, 500)
	if err != nil {
		t.Fatalf("WaitForIrq: %v", err)
	}
	if !ok || state.CCD != 1 || !state.IRQ {
		t.Fatalf("unexpected result: state=%+v ok=%v", state, ok)
	}
}
