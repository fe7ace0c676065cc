package engine

import (
	"fmt"

	"github.com/PSPReverse/libpspproxy/internal/perr"
	"github.com/PSPReverse/libpspproxy/pkg/allocator"
)

// Allocator returns the per-connection scratch allocator, constructing it
// from the ConnectResponse-advertised scratch region the first time it is
// needed (spec section 4.I: "initialized lazily the first time Alloc is
// called" — here lazily on first access rather than first Alloc, since the
// façade is the only caller and always calls this immediately before
// Alloc/Free anyway).
func (e *Engine) Allocator() (*allocator.Allocator, error) {
	if !e.state.IsConnected() {
		return nil, perr.New(perr.ArgumentInvalid, "allocator", fmt.Errorf("engine is not connected"))
	}
	if e.state.Allocator == nil {
		e.state.Allocator = allocator.New(allocator.Region{
			Start:  e.state.ScratchStart,
			Length: e.state.ScratchLength,
		})
	}
	return e.state.Allocator, nil
}
