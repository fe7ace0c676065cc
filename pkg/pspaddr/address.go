// Package pspaddr defines the tagged PSP address union and the generic
// transfer-flag vocabulary the engine and proxy façade use to describe
// every read/write/memset operation uniformly (spec section 3, 4.F
// "generic address transfer").
package pspaddr

import "fmt"

// Space identifies which address space a value lives in.
type Space uint8

const (
	SpacePSPMem Space = iota
	SpacePSPMMIO
	SpaceSMN
	SpaceX86Mem
	SpaceX86MMIO
)

func (s Space) String() string {
	switch s {
	case SpacePSPMem:
		return "psp-mem"
	case SpacePSPMMIO:
		return "psp-mmio"
	case SpaceSMN:
		return "smn"
	case SpaceX86Mem:
		return "x86-mem"
	case SpaceX86MMIO:
		return "x86-mmio"
	default:
		return "unknown"
	}
}

// CacheMode applies only to x86 memory/MMIO accesses.
type CacheMode uint8

const (
	CacheDefault CacheMode = iota
	CacheUC
	CacheWB
	CacheWC
	CacheWT
)

// Address is a tagged union over the five address spaces the stub exposes.
// Only the fields relevant to Space are meaningful; the others are zero.
type Address struct {
	Space Space

	// Value is the raw address: a PSP SRAM/MMIO offset, an SMN register
	// address, or an x86 physical address, depending on Space.
	Value uint64

	// CCD selects which die a SMN/PSP access targets.
	CCD uint32

	// Cache is only meaningful for SpaceX86Mem/SpaceX86MMIO.
	Cache CacheMode
}

// SMN builds an SMN register address on the given CCD.
func SMN(ccd uint32, reg uint32) Address {
	return Address{Space: SpaceSMN, CCD: ccd, Value: uint64(reg)}
}

// PSPMem builds a PSP SRAM address on the given CCD.
func PSPMem(ccd uint32, off uint32) Address {
	return Address{Space: SpacePSPMem, CCD: ccd, Value: uint64(off)}
}

// PSPMMIO builds a PSP MMIO address on the given CCD.
func PSPMMIO(ccd uint32, off uint32) Address {
	return Address{Space: SpacePSPMMIO, CCD: ccd, Value: uint64(off)}
}

// X86Mem builds an x86 physical memory address with the given caching mode.
func X86Mem(addr uint64, cache CacheMode) Address {
	return Address{Space: SpaceX86Mem, Value: addr, Cache: cache}
}

// X86MMIO builds an x86 MMIO address with the given caching mode.
func X86MMIO(addr uint64, cache CacheMode) Address {
	return Address{Space: SpaceX86MMIO, Value: addr, Cache: cache}
}

func (a Address) String() string {
	return fmt.Sprintf("%s(ccd=%d, 0x%x)", a.Space, a.CCD, a.Value)
}

// TransferFlags selects the behavior of a generic address transfer
// request: Read xor Write, with Memset and IncrAddr as modifiers.
type TransferFlags uint8

const (
	FlagRead TransferFlags = 1 << iota
	FlagWrite
	FlagMemset
	FlagIncrAddr
)

func (f TransferFlags) Has(flag TransferFlags) bool { return f&flag != 0 }

// ValidStride reports whether stride is one of the values the wire format
// allows for a generic transfer.
func ValidStride(stride int) bool {
	switch stride {
	case 1, 2, 4:
		return true
	default:
		return false
	}
}

// ValidRegisterSize reports whether cbVal is a legal coprocessor register
// access width.
func ValidRegisterSize(cbVal int) bool {
	switch cbVal {
	case 1, 2, 4, 8:
		return true
	default:
		return false
	}
}
