// Package mem implements the physical frame allocator and the simulated
// physical memory arena it allocates from. It follows biscuit's mem
// package: the same Pa_t/flag vocabulary, the same present-iff-bit-set
// invariant, but backed by a plain []byte arena (the "direct map", named
// Dmap after biscuit's own Physmem_t.Dmap) instead of real hardware, since
// this module runs as a library rather than on bare metal.
package mem

import (
	"fmt"
	"sync"
)

// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^PGOFFSET

// Page table entry flag bits, named after biscuit's mem.PTE_* constants.
const (
	PTE_P      Pa_t = 1 << 0 // present
	PTE_W      Pa_t = 1 << 1 // writable
	PTE_U      Pa_t = 1 << 2 // user-accessible
	PTE_A      Pa_t = 1 << 3 // accessed
	PTE_D      Pa_t = 1 << 4 // dirty
	PTE_COW    Pa_t = 1 << 5 // copy-on-write
	PTE_WASCOW Pa_t = 1 << 6 // was COW, now privately owned
)

// PTE_ADDR extracts the frame-address bits of a PTE.
const PTE_ADDR Pa_t = PGMASK

// Pa_t represents a physical address (or, doubling as a PTE, an
// address-plus-flags word).
type Pa_t uintptr

// Page is one page-sized chunk of the direct-mapped arena.
type Page [PGSIZE]byte

// OutOfMemory is the fatal condition raised when the frame allocator cannot
// satisfy an allocation. Frame exhaustion is always delivered via panic,
// never a returned error.
type OutOfMemory struct{}

func (OutOfMemory) Error() string { return "mem: out of physical frames" }

// FaultError is the panic value used for invariant violations that would
// halt the machine on real hardware (magic mismatches, kernel page
// faults, ...).
type FaultError struct {
	File string
	Line int
	Msg  string
}

func (f FaultError) Error() string {
	return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Msg)
}

// Physmem manages all simulated physical memory for one kernel instance.
// Unlike biscuit's package-level singleton, this module never uses package
// level mutable state for it: a kernel.Kernel owns exactly one Physmem, so
// that tests can build independent kernels at full isolation.
type Physmem struct {
	mu sync.Mutex

	arena    []Page   // backing storage, one entry per frame
	bitset   []uint64 // one bit per frame; bit set iff frame in use
	nframes  uint32
	usedhint uint32 // lowest frame index that might be free; scan hint

	// OomCh, if set, is notified once (non-blocking) the moment frame
	// exhaustion is detected, immediately before AllocFrame panics. A host
	// that wants a chance to react to memory pressure — log it, trigger a
	// diagnostic snapshot — can drain this channel from another goroutine;
	// nothing here waits on it. Adapted from biscuit's package-level
	// oommsg.OomCh, turned into a per-Physmem field since this module never
	// uses package-level mutable state.
	OomCh chan struct{}
}

// NewPhysmem allocates a simulated physical memory arena of nframes pages.
func NewPhysmem(nframes uint32) *Physmem {
	if nframes == 0 {
		panic("mem: zero frames")
	}
	words := (nframes + 63) / 64
	return &Physmem{
		arena:   make([]Page, nframes),
		bitset:  make([]uint64, words),
		nframes: nframes,
	}
}

// Nframes returns the total number of frames managed.
func (p *Physmem) Nframes() int { return int(p.nframes) }

func (p *Physmem) bitIsSet(idx uint32) bool {
	return p.bitset[idx/64]&(1<<(idx%64)) != 0
}

func (p *Physmem) bitSet(idx uint32) {
	p.bitset[idx/64] |= 1 << (idx % 64)
}

func (p *Physmem) bitClear(idx uint32) {
	p.bitset[idx/64] &^= 1 << (idx % 64)
}

// frameToPa converts a frame index to a physical address.
func (p *Physmem) frameToPa(idx uint32) Pa_t {
	return Pa_t(idx) << PGSHIFT
}

// paToFrame converts a physical address to a frame index.
func (p *Physmem) paToFrame(pa Pa_t) uint32 {
	return uint32(pa >> PGSHIFT)
}

// AllocFrame finds the lowest-numbered free frame, marks it used, and
// returns its physical address. It panics with OutOfMemory if no frame is
// free.
func (p *Physmem) AllocFrame() Pa_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocFrameLocked()
}

func (p *Physmem) allocFrameLocked() Pa_t {
	for wi := p.usedhint / 64; wi < uint32(len(p.bitset)); wi++ {
		w := p.bitset[wi]
		if w == ^uint64(0) {
			continue // skip fully-used words fast, per §4.1
		}
		for bi := uint32(0); bi < 64; bi++ {
			idx := wi*64 + bi
			if idx >= p.nframes {
				break
			}
			if w&(1<<bi) == 0 {
				p.bitSet(idx)
				p.usedhint = idx
				return p.frameToPa(idx)
			}
		}
	}
	if p.OomCh != nil {
		select {
		case p.OomCh <- struct{}{}:
		default:
		}
	}
	panic(OutOfMemory{})
}

// FreeFrame clears the frame backing pa. Freeing an already-free frame is a
// silent no-op (matches "freeing a null pointer" being a no-op elsewhere in
// the error taxonomy).
func (p *Physmem) FreeFrame(pa Pa_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.paToFrame(pa)
	if idx >= p.nframes {
		panic(FaultError{Msg: "mem: free of out-of-range frame"})
	}
	if !p.bitIsSet(idx) {
		return
	}
	p.bitClear(idx)
	if idx < p.usedhint {
		p.usedhint = idx
	}
	p.arena[idx] = Page{}
}

// IsPresent reports whether the frame backing pa is currently allocated.
func (p *Physmem) IsPresent(pa Pa_t) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.paToFrame(pa)
	if idx >= p.nframes {
		return false
	}
	return p.bitIsSet(idx)
}

// CountFree scans the bitset a word at a time, skipping all-ones words,
// exactly as specified in §4.1.
func (p *Physmem) CountFree() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := 0
	for wi, w := range p.bitset {
		if w == ^uint64(0) {
			continue
		}
		base := uint32(wi) * 64
		for bi := uint32(0); bi < 64; bi++ {
			idx := base + bi
			if idx >= p.nframes {
				break
			}
			if w&(1<<bi) == 0 {
				free++
			}
		}
	}
	return free
}

// CountUsed returns Nframes() - CountFree().
func (p *Physmem) CountUsed() int {
	return int(p.nframes) - p.CountFree()
}

// Dmap returns a direct-mapped byte slice view of the frame at pa. This is
// the hosted stand-in for biscuit's recursive/self-map based Dmap: since
// physical memory here is just a Go slice, "direct mapping" it is exact
// rather than approximate.
func (p *Physmem) Dmap(pa Pa_t) []byte {
	idx := p.paToFrame(pa)
	if idx >= p.nframes {
		panic(FaultError{Msg: "mem: Dmap of out-of-range address"})
	}
	off := int(pa & PGOFFSET)
	pg := &p.arena[idx]
	return pg[off:]
}

// ZeroFrame clears the frame backing pa to all zero bytes.
func (p *Physmem) ZeroFrame(pa Pa_t) {
	idx := p.paToFrame(pa)
	if idx >= p.nframes {
		panic(FaultError{Msg: "mem: zero of out-of-range address"})
	}
	p.arena[idx] = Page{}
}
