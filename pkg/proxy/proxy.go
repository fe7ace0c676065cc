// Package proxy is the typed high-level façade over the PDU engine (spec
// section 4.G): thin wrappers that validate argument shapes, build the
// engine-level request, and delegate to internal/engine's request/response
// and chunking primitives, grounded on the teacher's apiclient package's
// validate-then-delegate method shape.
package proxy

import (
	"context"
	"fmt"

	"github.com/PSPReverse/libpspproxy/internal/engine"
	"github.com/PSPReverse/libpspproxy/internal/hostio"
	"github.com/PSPReverse/libpspproxy/internal/perr"
	"github.com/PSPReverse/libpspproxy/internal/transport"
	"github.com/PSPReverse/libpspproxy/pkg/metrics"
	"github.com/PSPReverse/libpspproxy/pkg/pspaddr"
)

// Proxy is the embeddable entry point most callers use instead of talking
// to internal/engine directly.
type Proxy struct {
	eng *engine.Engine
	tr  transport.Transport
}

// New wraps tr with an Engine and builds a Proxy. sink may be nil.
func New(tr transport.Transport, sink hostio.Sink) *Proxy {
	return &Proxy{eng: engine.New(tr, sink), tr: tr}
}

// Connect performs the connect handshake.
func (p *Proxy) Connect(ctx context.Context) error { return p.eng.Connect(ctx) }

// Close releases the underlying transport.
func (p *Proxy) Close() error { return p.tr.Close() }

// SetMetrics attaches a collector for request, chunk, notification, and
// connection-state observability. Passing nil disables collection.
func (p *Proxy) SetMetrics(m metrics.Metrics) { p.eng.SetMetrics(m) }

// Info is a snapshot of the topology and limits learned during Connect.
type Info struct {
	CbPduMax       uint32
	ScratchStart   uint32
	ScratchLength  uint32
	CSysSockets    uint32
	CCcdsPerSocket uint32
	CCcds          uint32
}

// QueryInfo returns the topology reported by the stub. It is an error to
// call before Connect.
func (p *Proxy) QueryInfo() (Info, error) {
	state := p.eng.State()
	if !state.IsConnected() {
		return Info{}, perr.New(perr.ArgumentInvalid, "query-info", fmt.Errorf("not connected"))
	}
	return Info{
		CbPduMax:       state.CbPduMax,
		ScratchStart:   state.ScratchStart,
		ScratchLength:  state.ScratchLength,
		CSysSockets:    state.CSysSockets,
		CCcdsPerSocket: state.CCcdsPerSocket,
		CCcds:          state.CCcds,
	}, nil
}

func validateStride(op string, stride int) error {
	if !pspaddr.ValidStride(stride) {
		return perr.New(perr.ArgumentInvalid, op, fmt.Errorf("invalid stride %d: must be 1, 2, or 4", stride))
	}
	return nil
}

// readValue issues a single register-width generic transfer read and
// decodes the little-endian result into a uint64.
func (p *Proxy) readValue(ctx context.Context, op string, addr pspaddr.Address, stride int) (uint64, error) {
	if err := validateStride(op, stride); err != nil {
		return 0, err
	}
	buf := make([]byte, stride)
	if err := p.eng.Transfer(ctx, addr, pspaddr.FlagRead, uint8(stride), uint32(stride), nil, buf); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < stride; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v, nil
}

// writeValue issues a single register-width generic transfer write.
func (p *Proxy) writeValue(ctx context.Context, op string, addr pspaddr.Address, stride int, value uint64) error {
	if err := validateStride(op, stride); err != nil {
		return err
	}
	buf := make([]byte, stride)
	for i := 0; i < stride; i++ {
		buf[i] = byte(value >> (8 * i))
	}
	return p.eng.Transfer(ctx, addr, pspaddr.FlagWrite, uint8(stride), uint32(stride), buf, nil)
}

// copyIn issues a byte-granularity generic transfer read into buf.
func (p *Proxy) copyIn(ctx context.Context, addr pspaddr.Address, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return p.eng.Transfer(ctx, addr, pspaddr.FlagRead|pspaddr.FlagIncrAddr, 1, uint32(len(buf)), nil, buf)
}

// copyOut issues a byte-granularity generic transfer write of data.
func (p *Proxy) copyOut(ctx context.Context, addr pspaddr.Address, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return p.eng.Transfer(ctx, addr, pspaddr.FlagWrite|pspaddr.FlagIncrAddr, 1, uint32(len(data)), data, nil)
}

// SmnRead reads a single SMN register of the given byte width.
func (p *Proxy) SmnRead(ctx context.Context, ccd, reg uint32, cbStride int) (uint64, error) {
	return p.readValue(ctx, "smn-read", pspaddr.SMN(ccd, reg), cbStride)
}

// SmnWrite writes a single SMN register of the given byte width.
func (p *Proxy) SmnWrite(ctx context.Context, ccd, reg uint32, cbStride int, value uint64) error {
	return p.writeValue(ctx, "smn-write", pspaddr.SMN(ccd, reg), cbStride, value)
}

// PspMemRead copies len(buf) bytes from PSP SRAM starting at off into buf.
func (p *Proxy) PspMemRead(ctx context.Context, ccd, off uint32, buf []byte) error {
	return p.copyIn(ctx, pspaddr.PSPMem(ccd, off), buf)
}

// PspMemWrite copies data into PSP SRAM starting at off.
func (p *Proxy) PspMemWrite(ctx context.Context, ccd, off uint32, data []byte) error {
	return p.copyOut(ctx, pspaddr.PSPMem(ccd, off), data)
}

// PspMmioRead reads a single PSP MMIO register of the given byte width.
func (p *Proxy) PspMmioRead(ctx context.Context, ccd, off uint32, cbStride int) (uint64, error) {
	return p.readValue(ctx, "psp-mmio-read", pspaddr.PSPMMIO(ccd, off), cbStride)
}

// PspMmioWrite writes a single PSP MMIO register of the given byte width.
func (p *Proxy) PspMmioWrite(ctx context.Context, ccd, off uint32, cbStride int, value uint64) error {
	return p.writeValue(ctx, "psp-mmio-write", pspaddr.PSPMMIO(ccd, off), cbStride, value)
}

// X86MemRead copies len(buf) bytes from x86 physical memory.
func (p *Proxy) X86MemRead(ctx context.Context, addr uint64, cache pspaddr.CacheMode, buf []byte) error {
	return p.copyIn(ctx, pspaddr.X86Mem(addr, cache), buf)
}

// X86MemWrite copies data into x86 physical memory.
func (p *Proxy) X86MemWrite(ctx context.Context, addr uint64, cache pspaddr.CacheMode, data []byte) error {
	return p.copyOut(ctx, pspaddr.X86Mem(addr, cache), data)
}

// X86MmioRead reads a single x86 MMIO register of the given byte width.
func (p *Proxy) X86MmioRead(ctx context.Context, addr uint64, cache pspaddr.CacheMode, cbStride int) (uint64, error) {
	return p.readValue(ctx, "x86-mmio-read", pspaddr.X86MMIO(addr, cache), cbStride)
}

// X86MmioWrite writes a single x86 MMIO register of the given byte width.
func (p *Proxy) X86MmioWrite(ctx context.Context, addr uint64, cache pspaddr.CacheMode, cbStride int, value uint64) error {
	return p.writeValue(ctx, "x86-mmio-write", pspaddr.X86MMIO(addr, cache), cbStride, value)
}

// Memset fills length bytes at addr with the repeating pattern (whose
// length selects the stride).
func (p *Proxy) Memset(ctx context.Context, addr pspaddr.Address, pattern []byte, length uint32) error {
	if err := validateStride("memset", len(pattern)); err != nil {
		return err
	}
	return p.eng.Transfer(ctx, addr, pspaddr.FlagWrite|pspaddr.FlagMemset, uint8(len(pattern)), length, pattern, nil)
}

// CoprocRead reads a coprocessor register. cbVal must be one of 1, 2, 4, 8.
func (p *Proxy) CoprocRead(ctx context.Context, ccd, reg uint32, cbVal int) (uint64, error) {
	if !pspaddr.ValidRegisterSize(cbVal) {
		return 0, perr.New(perr.ArgumentInvalid, "coproc-read", fmt.Errorf("invalid register size %d", cbVal))
	}
	return p.eng.CoprocRead(ctx, ccd, reg, cbVal)
}

// CoprocWrite writes a coprocessor register. cbVal must be one of 1, 2, 4, 8.
func (p *Proxy) CoprocWrite(ctx context.Context, ccd, reg uint32, cbVal int, value uint64) error {
	if !pspaddr.ValidRegisterSize(cbVal) {
		return perr.New(perr.ArgumentInvalid, "coproc-write", fmt.Errorf("invalid register size %d", cbVal))
	}
	return p.eng.CoprocWrite(ctx, ccd, reg, cbVal, value)
}

// BranchTo branches a CCD's core to addr and begins execution.
func (p *Proxy) BranchTo(ctx context.Context, ccd uint32, addr uint64) error {
	return p.eng.BranchTo(ctx, ccd, addr)
}

// CodeModLoad loads a code module's bytes onto ccd.
func (p *Proxy) CodeModLoad(ctx context.Context, ccd uint32, code []byte) error {
	return p.eng.CodeModLoad(ctx, ccd, code)
}

// CodeModExec starts a previously-loaded code module at entry and returns
// its reported return value once it finishes.
func (p *Proxy) CodeModExec(ctx context.Context, ccd uint32, entry uint64) (uint32, error) {
	return p.eng.CodeModExec(ctx, ccd, entry)
}

// WaitForIrq drains the next pending per-CCD IRQ change, blocking up to
// timeoutMs if none is already pending.
func (p *Proxy) WaitForIrq(ctx context.Context, timeoutMs int) (hostio.CCDIrqState, bool, error) {
	return p.eng.WaitForIrq(ctx, timeoutMs)
}

// Alloc reserves size bytes of PSP scratch space, initializing the
// allocator from the scratch region reported by Connect on first use.
func (p *Proxy) Alloc(size uint32) (uint32, error) {
	alloc, err := p.eng.Allocator()
	if err != nil {
		return 0, err
	}
	addr, err := alloc.Alloc(size)
	if err != nil {
		return 0, perr.New(perr.ArgumentInvalid, "scratch-alloc", err)
	}
	return addr, nil
}

// Free releases a previously allocated scratch span.
func (p *Proxy) Free(addr, size uint32) error {
	alloc, err := p.eng.Allocator()
	if err != nil {
		return err
	}
	alloc.Free(addr, size)
	return nil
}
