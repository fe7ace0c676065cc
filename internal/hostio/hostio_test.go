package hostio

import "testing"

func TestLogBufferAssemblesLines(t *testing.T) {
	lb := NewLogBuffer(MinLogBufferSize)
	lines := lb.Append([]byte("hello "))
	if len(lines) != 0 {
		t.Fatalf("expected no complete lines yet, got %v", lines)
	}
	lines = lb.Append([]byte("world\nsecond\nthird"))
	if len(lines) != 2 || lines[0] != "hello world" || lines[1] != "second" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestLogBufferDropsOnOverflow(t *testing.T) {
	lb := NewLogBuffer(MinLogBufferSize)
	lb.Append([]byte("partial"))
	huge := make([]byte, MinLogBufferSize)
	lines := lb.Append(huge)
	if lines != nil {
		t.Fatalf("expected overflow to drop silently, got %v", lines)
	}
	// The partial line survives the dropped notification.
	lines = lb.Append([]byte("-done\n"))
	if len(lines) != 1 || lines[0] != "partial-done" {
		t.Fatalf("unexpected lines after overflow recovery: %v", lines)
	}
}

func TestIrqTableDrainOrder(t *testing.T) {
	table := NewIrqTable(4)
	if table.PendingCount() != 0 {
		t.Fatalf("expected empty table")
	}
	table.Apply(2, true, false)
	table.Apply(2, true, true) // same CCD again: not a new rising edge
	if table.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", table.PendingCount())
	}

	state, ok := table.DrainAny()
	if !ok || state.CCD != 2 || !state.IRQ || !state.FIRQ {
		t.Fatalf("unexpected drained state: %+v, ok=%v", state, ok)
	}
	if table.PendingCount() != 0 {
		t.Fatalf("expected table empty after drain")
	}
	if _, ok := table.DrainAny(); ok {
		t.Fatalf("expected no further pending entries")
	}
}

func TestIrqTableDrainsInArrivalOrder(t *testing.T) {
	table := NewIrqTable(4)
	// Raise CCD 3 first, then CCD 1, then CCD 0 — deliberately out of
	// index order, so draining by lowest index would get this wrong.
	table.Apply(3, true, false)
	table.Apply(1, true, false)
	table.Apply(0, true, false)

	var order []uint32
	for i := 0; i < 3; i++ {
		state, ok := table.DrainAny()
		if !ok {
			t.Fatalf("expected a pending entry at step %d", i)
		}
		order = append(order, state.CCD)
	}
	want := []uint32{3, 1, 0}
	for i, ccd := range want {
		if order[i] != ccd {
			t.Fatalf("drain order = %v, want %v", order, want)
		}
	}
	if _, ok := table.DrainAny(); ok {
		t.Fatalf("expected no further pending entries")
	}
}
