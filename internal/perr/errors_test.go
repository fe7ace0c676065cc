package perr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := New(PeerReset, "connect", fmt.Errorf("boom"))
	if !errors.Is(err, ErrPeerReset) {
		t.Fatalf("expected errors.Is to match on Kind")
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("expected no match against a different Kind")
	}
}

func TestRejectedErrorUnwrapsToKind(t *testing.T) {
	err := NewRejected("coproc-write", 42)
	if !errors.Is(err, ErrRequestRejected) {
		t.Fatalf("expected RejectedError to match RequestRejected")
	}
	var rr *RejectedError
	if !errors.As(err, &rr) {
		t.Fatalf("expected errors.As to find *RejectedError")
	}
	if rr.StubRC != 42 {
		t.Fatalf("StubRC = %d, want 42", rr.StubRC)
	}
}
