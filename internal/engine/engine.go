package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/PSPReverse/libpspproxy/internal/hostio"
	"github.com/PSPReverse/libpspproxy/internal/pdu"
	"github.com/PSPReverse/libpspproxy/internal/perr"
	"github.com/PSPReverse/libpspproxy/internal/transport"
	"github.com/PSPReverse/libpspproxy/pkg/metrics"
	"github.com/PSPReverse/libpspproxy/pkg/pspaddr"
)

// frameOverhead is the fixed header+footer cost every PDU pays, used to
// compute the chunk cap for transfers against the peer's cbPduMax.
const frameOverhead = 32 + 8

// requestHdrOverhead bounds the largest fixed request header any operation
// prepends ahead of its variable payload, used conservatively when sizing
// chunks so every operation's chunk cap is safe regardless of which
// request kind is chunking.
const requestHdrOverhead = xferRequestHeaderSize

// Engine drives one PDU connection: the connect handshake, the single
// in-flight request/response correlator, chunking, and notification
// dispatch. It is not safe for concurrent use (spec section 5).
type Engine struct {
	tr     transport.Transport
	framer *pdu.Framer
	sink   hostio.Sink

	state      ConnState
	outCounter uint32
	lastRC     uint32
	failed     bool

	logBuf   *hostio.LogBuffer
	irqTable *hostio.IrqTable

	recvBufCap int
	readBuf    []byte

	metrics metrics.Metrics
}

// New wraps tr with an engine. sink may be nil, in which case all
// notification callbacks are no-ops.
func New(tr transport.Transport, sink hostio.Sink) *Engine {
	if sink == nil {
		sink = hostio.NoopSink{}
	}
	const recvBufCap = pdu.MinRecvBuffer
	return &Engine{
		tr:         tr,
		framer:     pdu.NewFramer(pdu.HostToStub, recvBufCap),
		sink:       sink,
		state:      disconnected(),
		logBuf:     hostio.NewLogBuffer(hostio.MinLogBufferSize),
		recvBufCap: recvBufCap,
		readBuf:    make([]byte, recvBufCap),
		metrics:    metrics.Noop,
	}
}

// SetMetrics attaches a collector for request, chunk, notification, and
// connection-state observability. Passing nil restores the no-op
// collector.
func (e *Engine) SetMetrics(m metrics.Metrics) {
	if m == nil {
		m = metrics.Noop
	}
	e.metrics = m
}

// State returns the current connection state.
func (e *Engine) State() ConnState { return e.state }

// LastRC returns the stub return code from the most recently completed
// request.
func (e *Engine) LastRC() uint32 { return e.lastRC }

func (e *Engine) checkAlive(op string) error {
	if e.failed {
		return perr.New(perr.PeerReset, op, fmt.Errorf("session permanently failed after a prior PeerReset"))
	}
	return nil
}

// waitForResponse runs the response-wait loop: read frames, route
// notifications through dispatchNotification, and return the first frame
// whose RRN equals want.
func (e *Engine) waitForResponse(ctx context.Context, want pdu.RRN) (pdu.Frame, error) {
	for {
		if err := e.tr.Poll(ctx); err != nil {
			return pdu.Frame{}, perr.New(perr.TransportFailure, "poll", err)
		}
		n, err := e.tr.Read(ctx, e.readBuf)
		if err != nil {
			return pdu.Frame{}, perr.New(perr.TransportFailure, "read", err)
		}
		if n == 0 {
			continue
		}
		for _, f := range e.framer.Feed(e.readBuf[:n]) {
			if f.RRN == want {
				return f, nil
			}
			if f.RRN.IsNotification() {
				if fatal := e.dispatchNotification(f); fatal != nil {
					return pdu.Frame{}, fatal
				}
				continue
			}
			return pdu.Frame{}, perr.New(perr.ProtocolViolation, "wait-for-response",
				fmt.Errorf("unexpected id %s while waiting for %s", f.RRN, want))
		}
	}
}

func (e *Engine) emit(id pdu.RRN, ccd uint32, payload []byte) error {
	e.outCounter++
	err := pdu.Emit(writerFunc(e.tr.Write), pdu.HostToStub, e.outCounter, id, ccd, 0, 0, payload)
	if err != nil {
		return perr.New(perr.TransportFailure, "emit", err)
	}
	return nil
}

type writerFunc func([]byte) error

func (w writerFunc) Write(buf []byte) error { return w(buf) }

// request runs the single-shot request/response form: emit id with
// payload, wait for its expected response, stash the stub rc, and return
// the response payload.
func (e *Engine) request(ctx context.Context, id pdu.RRN, ccd uint32, payload []byte) ([]byte, error) {
	start := time.Now()
	if err := e.checkAlive("request"); err != nil {
		return nil, err
	}
	if err := e.emit(id, ccd, payload); err != nil {
		return nil, err
	}
	resp, err := e.waitForResponse(ctx, id.ExpectedResponse())
	if err != nil {
		return nil, err
	}
	e.lastRC = resp.RequestRC
	e.metrics.RecordRequest(id.String(), time.Since(start), resp.RequestRC)
	if resp.RequestRC != 0 {
		return nil, perr.NewRejected(id.String(), resp.RequestRC)
	}
	return resp.Payload, nil
}

// Connect performs the handshake: wait for a Beacon, send ConnectRequest,
// validate ConnectResponse, and transition to Connected.
func (e *Engine) Connect(ctx context.Context) error {
	if e.state.IsConnected() {
		return nil
	}
	beaconFrame, err := e.waitForFirstBeacon(ctx)
	if err != nil {
		return err
	}
	cBeaconsSent, err := decodeBeacon(beaconFrame.Payload)
	if err != nil {
		return perr.New(perr.ProtocolViolation, "connect", err)
	}

	payload, err := e.request(ctx, pdu.ReqConnect, 0, nil)
	if err != nil {
		return err
	}
	resp, err := decodeConnectResponse(payload)
	if err != nil {
		return perr.New(perr.ProtocolViolation, "connect", err)
	}
	cCcds := resp.CSysSockets * resp.CCcdsPerSocket
	if cCcds == 0 {
		return perr.New(perr.ProtocolViolation, "connect", fmt.Errorf("stub reported zero CCDs"))
	}

	e.framer.SetConnected(cCcds)
	e.irqTable = hostio.NewIrqTable(cCcds)
	e.state = connected(&Connected{
		CbPduMax:       resp.CbPduMax,
		ScratchStart:   resp.PspAddrScratch,
		ScratchLength:  resp.CbScratch,
		CSysSockets:    resp.CSysSockets,
		CCcdsPerSocket: resp.CCcdsPerSocket,
		CCcds:          cCcds,
		CBeaconsSeen:   cBeaconsSent,
	})
	e.metrics.SetConnected(true)
	return nil
}

// waitForFirstBeacon drains frames before Connected looking for the first
// Beacon notification, treating any other id as a pre-connect notification
// to dispatch normally (only Beacon is expected in practice).
func (e *Engine) waitForFirstBeacon(ctx context.Context) (pdu.Frame, error) {
	for {
		if err := e.tr.Poll(ctx); err != nil {
			return pdu.Frame{}, perr.New(perr.TransportFailure, "poll", err)
		}
		n, err := e.tr.Read(ctx, e.readBuf)
		if err != nil {
			return pdu.Frame{}, perr.New(perr.TransportFailure, "read", err)
		}
		if n == 0 {
			continue
		}
		for _, f := range e.framer.Feed(e.readBuf[:n]) {
			if f.RRN == pdu.NotifyBeacon {
				return f, nil
			}
		}
	}
}

// chunkCap returns the largest per-chunk payload size the peer's
// advertised cbPduMax allows for a transfer-style request.
func (e *Engine) chunkCap() uint32 {
	c := e.state.CbPduMax - frameOverhead - requestHdrOverhead
	if c == 0 || c > e.state.CbPduMax {
		c = 1
	}
	return c
}

// Transfer issues a generic address transfer (spec section 4.F), chunking
// transparently when cbXfer exceeds the peer's advertised chunk cap.
// writeData is nil for a pure Read. readInto, if non-nil, receives the
// read bytes across all chunks.
func (e *Engine) Transfer(ctx context.Context, addr pspaddr.Address, flags pspaddr.TransferFlags, stride uint8, cbXfer uint32, writeData []byte, readInto []byte) error {
	if err := e.checkAlive("transfer"); err != nil {
		return err
	}
	if !e.state.IsConnected() {
		return perr.New(perr.ArgumentInvalid, "transfer", fmt.Errorf("engine is not connected"))
	}

	chunkCap := e.chunkCap()
	remaining := cbXfer
	addrCursor := addr
	var writeOff, readOff uint32

	for remaining > 0 {
		chunkLen := remaining
		if chunkLen > chunkCap {
			chunkLen = chunkCap
		}

		var chunkWrite []byte
		if flags.Has(pspaddr.FlagWrite) {
			if flags.Has(pspaddr.FlagMemset) {
				chunkWrite = writeData[:stride]
			} else {
				chunkWrite = writeData[writeOff : writeOff+chunkLen]
			}
		}

		payload := encodeXferRequest(addrCursor, flags, stride, chunkLen, chunkWrite)
		respPayload, err := e.request(ctx, pdu.ReqXfer, addrCursor.CCD, payload)
		if err != nil {
			return err
		}
		if flags.Has(pspaddr.FlagWrite) {
			e.metrics.RecordChunk("write", int(chunkLen))
		} else {
			e.metrics.RecordChunk("read", int(chunkLen))
		}
		if flags.Has(pspaddr.FlagRead) {
			if uint32(len(respPayload)) < chunkLen {
				return perr.New(perr.ProtocolViolation, "transfer", fmt.Errorf("short read response: got %d, want %d", len(respPayload), chunkLen))
			}
			copy(readInto[readOff:readOff+chunkLen], respPayload[:chunkLen])
		}

		if flags.Has(pspaddr.FlagIncrAddr) {
			addrCursor.Value += uint64(chunkLen)
		}
		if !flags.Has(pspaddr.FlagMemset) {
			writeOff += chunkLen
			readOff += chunkLen
		}
		remaining -= chunkLen
	}
	return nil
}

// CoprocRead issues a single (never chunked) coprocessor register read.
func (e *Engine) CoprocRead(ctx context.Context, ccd, reg uint32, cbVal int) (uint64, error) {
	if !pspaddr.ValidRegisterSize(cbVal) {
		return 0, perr.New(perr.ArgumentInvalid, "coproc-read", fmt.Errorf("invalid register size %d", cbVal))
	}
	payload := encodeCoprocRead(ccd, reg, uint32(cbVal))
	resp, err := e.request(ctx, pdu.ReqCoprocRead, ccd, payload)
	if err != nil {
		return 0, err
	}
	if len(resp) < cbVal {
		return 0, perr.New(perr.ProtocolViolation, "coproc-read", fmt.Errorf("short response"))
	}
	var v uint64
	for i := 0; i < cbVal; i++ {
		v |= uint64(resp[i]) << (8 * i)
	}
	return v, nil
}

// CoprocWrite issues a single coprocessor register write.
func (e *Engine) CoprocWrite(ctx context.Context, ccd, reg uint32, cbVal int, value uint64) error {
	if !pspaddr.ValidRegisterSize(cbVal) {
		return perr.New(perr.ArgumentInvalid, "coproc-write", fmt.Errorf("invalid register size %d", cbVal))
	}
	payload := encodeCoprocWrite(ccd, reg, uint32(cbVal), value)
	_, err := e.request(ctx, pdu.ReqCoprocWrite, ccd, payload)
	return err
}

// BranchTo issues a branch-and-execute request.
func (e *Engine) BranchTo(ctx context.Context, ccd uint32, addr uint64) error {
	payload := encodeBranchTo(ccd, addr)
	_, err := e.request(ctx, pdu.ReqBranchTo, ccd, payload)
	return err
}

// WaitForIrq implements spec section 4.F: drain the per-CCD table first;
// only block in recv if it is empty and timeoutMs > 0.
func (e *Engine) WaitForIrq(ctx context.Context, timeoutMs int) (hostio.CCDIrqState, bool, error) {
	if err := e.checkAlive("wait-for-irq"); err != nil {
		return hostio.CCDIrqState{}, false, err
	}
	if e.irqTable == nil {
		return hostio.CCDIrqState{}, false, perr.New(perr.ArgumentInvalid, "wait-for-irq", fmt.Errorf("not connected"))
	}
	if state, ok := e.irqTable.DrainAny(); ok {
		return state, true, nil
	}
	if timeoutMs <= 0 {
		return hostio.CCDIrqState{}, false, nil
	}

	waitCtx, cancel := transport.WithDeadline(ctx, timeoutMs)
	defer cancel()
	for {
		if err := e.tr.Poll(waitCtx); err != nil {
			return hostio.CCDIrqState{}, false, nil
		}
		n, err := e.tr.Read(waitCtx, e.readBuf)
		if err != nil {
			return hostio.CCDIrqState{}, false, perr.New(perr.TransportFailure, "wait-for-irq", err)
		}
		for _, f := range e.framer.Feed(e.readBuf[:n]) {
			if f.RRN.IsNotification() {
				if fatal := e.dispatchNotification(f); fatal != nil {
					return hostio.CCDIrqState{}, false, fatal
				}
			}
		}
		if state, ok := e.irqTable.DrainAny(); ok {
			return state, true, nil
		}
	}
}
