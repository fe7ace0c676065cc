package engine

import (
	"errors"
	"testing"

	"github.com/PSPReverse/libpspproxy/internal/pdu"
	"github.com/PSPReverse/libpspproxy/internal/perr"
)

func TestDispatchNotificationOutBufWrite(t *testing.T) {
	e, _ := connectedEngine(t)
	var gotID uint32
	var gotData []byte
	e.sink = outBufRecorder{id: &gotID, data: &gotData}

	payload := append(le32(3), []byte("payload")...)
	f := pdu.Frame{RRN: pdu.NotifyOutBufWrite, Payload: payload}
	if err := e.dispatchNotification(f); err != nil {
		t.Fatalf("dispatchNotification: %v", err)
	}
	if gotID != 3 || string(gotData) != "payload" {
		t.Fatalf("got id=%d data=%q", gotID, gotData)
	}
}

func TestDispatchNotificationUnexpectedIDIsProtocolViolation(t *testing.T) {
	e, _ := connectedEngine(t)
	f := pdu.Frame{RRN: pdu.ReqConnect} // a request id is never a valid notification
	err := e.dispatchNotification(f)
	if !errors.Is(err, perr.ErrProtocolViolation) {
		t.Fatalf("expected ProtocolViolation, got %v", err)
	}
}

func TestHandleBeaconBeforeConnectIsIgnored(t *testing.T) {
	tr := newFakeTransport()
	e := New(tr, nil)
	f := pdu.Frame{RRN: pdu.NotifyBeacon, Payload: le32(5)}
	if err := e.handleBeacon(f); err != nil {
		t.Fatalf("pre-connect beacon should be ignored, got %v", err)
	}
	if e.failed {
		t.Fatalf("engine must not be marked failed before Connect")
	}
}

func TestHandleBeaconMatchingSequenceIsAccepted(t *testing.T) {
	e, _ := connectedEngine(t)
	e.state.CBeaconsSeen = 1
	if err := e.handleBeacon(pdu.Frame{RRN: pdu.NotifyBeacon, Payload: le32(2)}); err != nil {
		t.Fatalf("expected in-sequence beacon to be accepted: %v", err)
	}
	if e.state.CBeaconsSeen != 2 {
		t.Fatalf("CBeaconsSeen = %d, want 2", e.state.CBeaconsSeen)
	}
	if e.failed {
		t.Fatalf("engine should not be failed")
	}
}

type outBufRecorder struct {
	id   *uint32
	data *[]byte
}

func (outBufRecorder) LogMsg(string) {}
func (o outBufRecorder) OutBufWrite(idOutBuf uint32, data []byte) {
	*o.id = idOutBuf
	*o.data = append([]byte(nil), data...)
}
func (outBufRecorder) InBufPeek(uint32) int         { return 0 }
func (outBufRecorder) InBufRead(uint32, []byte) int { return 0 }
