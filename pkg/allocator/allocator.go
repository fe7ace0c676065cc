// Package allocator implements the best-fit free-list allocator over the
// PSP-side scratch region discovered via Connect (spec section 4.I).
package allocator

import (
	"fmt"
	"sort"
)

// Region describes the byte range to carve allocations out of.
type Region struct {
	Start  uint32
	Length uint32
}

type freeChunk struct {
	start, length uint32
}

// Allocator is a doubly-linked (conceptually; modeled here as a sorted
// slice, which gives the same splice/coalesce behavior with simpler Go)
// list of free chunks ordered by ascending address. It is lazily
// initialized from a Region the first time Alloc is called.
type Allocator struct {
	region      Region
	initialized bool
	free        []freeChunk
}

// New creates an allocator that will initialize itself from region on
// first use. region is normally supplied by the engine's Allocator method
// (the scratch fields copied out of ConnectResponse).
func New(region Region) *Allocator {
	return &Allocator{region: region}
}

func (a *Allocator) ensureInit() {
	if a.initialized {
		return
	}
	a.initialized = true
	if a.region.Length > 0 {
		a.free = []freeChunk{{start: a.region.Start, length: a.region.Length}}
	}
}

// Alloc reserves size bytes using best fit: the smallest free chunk that
// still fits size. An exact-size match is spliced out of the list; a
// larger chunk is shrunk and the allocation is carved from its high end so
// the low end (more likely to already be referenced by prior allocations
// in address-sorted traversals) stays free.
func (a *Allocator) Alloc(size uint32) (uint32, error) {
	a.ensureInit()
	if size == 0 {
		return 0, fmt.Errorf("allocator: cannot allocate zero bytes")
	}

	best := -1
	for i, c := range a.free {
		if c.length < size {
			continue
		}
		if best == -1 || c.length < a.free[best].length {
			best = i
		}
	}
	if best == -1 {
		return 0, fmt.Errorf("allocator: out of scratch space (requested %d bytes)", size)
	}

	chunk := a.free[best]
	if chunk.length == size {
		a.free = append(a.free[:best], a.free[best+1:]...)
		return chunk.start, nil
	}

	addr := chunk.start + chunk.length - size
	a.free[best].length -= size
	return addr, nil
}

// Free releases a previously allocated [addr, addr+size) span, coalescing
// it with any free chunk it is adjacent to.
func (a *Allocator) Free(addr, size uint32) {
	a.ensureInit()
	if size == 0 {
		return
	}
	end := addr + size

	for i := range a.free {
		c := &a.free[i]
		if c.start+c.length == addr {
			c.length += size
			a.coalesceForward(i)
			return
		}
		if end == c.start {
			c.start = addr
			c.length += size
			a.coalesceBackward(i)
			return
		}
	}

	a.insertSorted(freeChunk{start: addr, length: size})
}

func (a *Allocator) coalesceForward(i int) {
	if i+1 < len(a.free) && a.free[i].start+a.free[i].length == a.free[i+1].start {
		a.free[i].length += a.free[i+1].length
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
}

func (a *Allocator) coalesceBackward(i int) {
	if i > 0 && a.free[i-1].start+a.free[i-1].length == a.free[i].start {
		a.free[i-1].length += a.free[i].length
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

func (a *Allocator) insertSorted(nc freeChunk) {
	idx := sort.Search(len(a.free), func(i int) bool { return a.free[i].start > nc.start })
	a.free = append(a.free, freeChunk{})
	copy(a.free[idx+1:], a.free[idx:])
	a.free[idx] = nc
}

// FreeBytes returns the total number of bytes currently available,
// primarily for tests and diagnostics.
func (a *Allocator) FreeBytes() uint32 {
	a.ensureInit()
	var total uint32
	for _, c := range a.free {
		total += c.length
	}
	return total
}

// Chunks returns a snapshot of the current free list, ascending by
// address; exposed for tests that assert on coalescing behavior.
func (a *Allocator) Chunks() []Region {
	a.ensureInit()
	out := make([]Region, len(a.free))
	for i, c := range a.free {
		out[i] = Region{Start: c.start, Length: c.length}
	}
	return out
}
