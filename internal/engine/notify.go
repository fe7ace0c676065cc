package engine

import (
	"fmt"

	"github.com/PSPReverse/libpspproxy/internal/pdu"
	"github.com/PSPReverse/libpspproxy/internal/perr"
)

// dispatchNotification handles one notification-range frame observed
// inside a response-wait loop (spec section 4.F "Notification handling").
// A non-nil return is an error the caller must surface immediately: either
// PeerReset, which also permanently fails the engine, or ProtocolViolation
// for an id that is not a known notification.
func (e *Engine) dispatchNotification(f pdu.Frame) error {
	switch f.RRN {
	case pdu.NotifyLogMsg:
		e.metrics.RecordNotification("log")
		for _, line := range e.logBuf.Append(f.Payload) {
			e.sink.LogMsg(line)
		}
		return nil

	case pdu.NotifyOutBufWrite:
		e.metrics.RecordNotification("out-buf")
		hdr, data, err := decodeOutBufWrite(f.Payload)
		if err != nil {
			return nil // malformed notification: ignored, not fatal
		}
		e.sink.OutBufWrite(hdr.IdOutBuf, data)
		return nil

	case pdu.NotifyIrqChange:
		e.metrics.RecordNotification("irq-change")
		ccd, irq, firq, err := decodeIrqChange(f.Payload)
		if err != nil || e.irqTable == nil {
			return nil
		}
		e.metrics.RecordIRQChange(ccd)
		e.irqTable.Apply(ccd, irq, firq)
		return nil

	case pdu.NotifyBeacon:
		e.metrics.RecordNotification("beacon")
		return e.handleBeacon(f)

	case pdu.NotifyCodeModExecFinished:
		// Consumed directly by the CodeModExec runloop via a dedicated
		// wait, not through this path; seeing one here is harmless.
		e.metrics.RecordNotification("codemod-exec-finished")
		return nil

	default:
		return perr.New(perr.ProtocolViolation, "notification", fmt.Errorf("unexpected notification id %s", f.RRN))
	}
}

func (e *Engine) handleBeacon(f pdu.Frame) error {
	cBeaconsSent, err := decodeBeacon(f.Payload)
	if err != nil {
		return nil
	}
	if !e.state.IsConnected() {
		return nil
	}
	if cBeaconsSent != e.state.CBeaconsSeen+1 {
		e.failed = true
		e.framer.Fail()
		return perr.New(perr.PeerReset, "beacon",
			fmt.Errorf("beacon counter %d is not the expected %d; stub appears to have reset", cBeaconsSent, e.state.CBeaconsSeen+1))
	}
	e.state.CBeaconsSeen = cBeaconsSent
	return nil
}
