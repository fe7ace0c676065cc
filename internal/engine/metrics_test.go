package engine

import (
	"context"
	"testing"
	"time"

	"github.com/PSPReverse/libpspproxy/internal/pdu"
	"github.com/PSPReverse/libpspproxy/pkg/pspaddr"
)

type recordingMetrics struct {
	requests      []string
	chunks        []int
	notifications []string
	connected     []bool
}

func (m *recordingMetrics) RecordRequest(rrn string, _ time.Duration, _ uint32) {
	m.requests = append(m.requests, rrn)
}
func (m *recordingMetrics) RecordChunk(_ string, bytes int) { m.chunks = append(m.chunks, bytes) }
func (m *recordingMetrics) RecordNotification(kind string) {
	m.notifications = append(m.notifications, kind)
}
func (m *recordingMetrics) RecordIRQChange(uint32)      {}
func (m *recordingMetrics) SetConnected(v bool)         { m.connected = append(m.connected, v) }

func TestMetricsRecordConnectAndRequest(t *testing.T) {
	tr := newFakeTransport()
	e := New(tr, nil)
	rec := &recordingMetrics{}
	e.SetMetrics(rec)

	tr.Feed(beaconFrame(1, 1))
	tr.Feed(respFrame(2, pdu.RespConnect, 0, 0, connectResponsePayload(256, 0x1000, 0x1000, 1, 2)))
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(rec.connected) != 1 || !rec.connected[0] {
		t.Fatalf("expected one SetConnected(true), got %v", rec.connected)
	}
	if len(rec.requests) != 1 || rec.requests[0] != pdu.ReqConnect.String() {
		t.Fatalf("expected a recorded ReqConnect request, got %v", rec.requests)
	}

	tr.Feed(respFrame(3, pdu.RespBranchTo, 0, 0, nil))
	if err := e.BranchTo(context.Background(), 0, 0x1000); err != nil {
		t.Fatalf("BranchTo: %v", err)
	}
	if len(rec.requests) != 2 || rec.requests[1] != pdu.ReqBranchTo.String() {
		t.Fatalf("expected a recorded ReqBranchTo request, got %v", rec.requests)
	}
}

func TestMetricsRecordChunksDuringTransfer(t *testing.T) {
	e, tr := connectedEngine(t)
	rec := &recordingMetrics{}
	e.SetMetrics(rec)

	tr.Feed(respFrame(3, pdu.RespXfer, 0, 0, nil))
	tr.Feed(respFrame(4, pdu.RespXfer, 0, 0, nil))

	data := make([]byte, 300)
	addr := pspaddr.SMN(0, 0x1000)
	err := e.Transfer(context.Background(), addr, pspaddr.FlagWrite|pspaddr.FlagIncrAddr, 1, uint32(len(data)), data, nil)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if len(rec.chunks) != 2 || rec.chunks[0]+rec.chunks[1] != len(data) {
		t.Fatalf("chunks = %v, want two chunks summing to %d", rec.chunks, len(data))
	}
}
