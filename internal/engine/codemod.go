package engine

import (
	"context"
	"time"

	"github.com/PSPReverse/libpspproxy/internal/pdu"
	"github.com/PSPReverse/libpspproxy/internal/perr"
)

// execPollInterval is the short timeout the runloop uses while waiting for
// an ExecFinished notification before checking the host input source
// (spec section 4.F: "Poll for a ExecFinished notification with a short
// timeout (e.g. 1 ms)").
const execPollInterval = time.Millisecond

// inBufChunkSize bounds how many bytes the runloop forwards from the host
// input source per InputBufferWrite while a code module is executing.
const inBufChunkSize = 512

// CodeModLoad sends a LoadRequest then chunks code through repeated
// InputBufferWrite requests, each sized to the peer's advertised chunk cap.
func (e *Engine) CodeModLoad(ctx context.Context, ccd uint32, code []byte) error {
	if _, err := e.request(ctx, pdu.ReqCodeModLoad, ccd, encodeCodeModLoad(ccd, uint32(len(code)))); err != nil {
		return err
	}

	chunkCap := e.chunkCap()
	for off := 0; off < len(code); {
		end := off + int(chunkCap)
		if end > len(code) {
			end = len(code)
		}
		payload := encodeInputBufWrite(ccd, 0, code[off:end])
		if _, err := e.request(ctx, pdu.ReqInputBufWrite, ccd, payload); err != nil {
			return err
		}
		off = end
	}
	return nil
}

// CodeModExec starts execution at entry and pumps host input bytes into
// the stub until an ExecFinished notification reports the module's return
// value.
func (e *Engine) CodeModExec(ctx context.Context, ccd uint32, entry uint64) (uint32, error) {
	if _, err := e.request(ctx, pdu.ReqCodeModExec, ccd, encodeCodeModExec(ccd, entry)); err != nil {
		return 0, err
	}

	for {
		rc, done, err := e.pollExecFinished(ctx)
		if err != nil {
			return 0, err
		}
		if done {
			return rc, nil
		}
		e.pumpHostInput(ctx, ccd)
	}
}

// pollExecFinished waits up to execPollInterval for an ExecFinished
// notification, dispatching any other notification seen along the way.
func (e *Engine) pollExecFinished(ctx context.Context) (uint32, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, execPollInterval)
	defer cancel()

	if err := e.tr.Poll(waitCtx); err != nil {
		return 0, false, nil // timeout elapsed: not an error, just "not yet"
	}
	n, err := e.tr.Read(waitCtx, e.readBuf)
	if err != nil {
		return 0, false, perr.New(perr.TransportFailure, "codemod-exec", err)
	}
	for _, f := range e.framer.Feed(e.readBuf[:n]) {
		if f.RRN == pdu.NotifyCodeModExecFinished {
			rc, err := decodeCodeModExecFinished(f.Payload)
			if err != nil {
				return 0, false, perr.New(perr.ProtocolViolation, "codemod-exec", err)
			}
			return rc, true, nil
		}
		if f.RRN.IsNotification() {
			if fatal := e.dispatchNotification(f); fatal != nil {
				return 0, false, fatal
			}
		}
	}
	return 0, false, nil
}

// pumpHostInput forwards whatever bytes the host input sink currently has
// available, in chunks of at most inBufChunkSize, as InputBufferWrite
// requests. Errors here are swallowed (logged via the sink's own LogMsg
// path would be circular); a failed pump simply retries next iteration.
func (e *Engine) pumpHostInput(ctx context.Context, ccd uint32) {
	avail := e.sink.InBufPeek(0)
	if avail <= 0 {
		return
	}
	if avail > inBufChunkSize {
		avail = inBufChunkSize
	}
	buf := make([]byte, avail)
	n := e.sink.InBufRead(0, buf)
	if n <= 0 {
		return
	}
	payload := encodeInputBufWrite(ccd, 0, buf[:n])
	e.request(ctx, pdu.ReqInputBufWrite, ccd, payload)
}
