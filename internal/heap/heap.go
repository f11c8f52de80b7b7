// Package heap implements the per-address-space best-fit allocator from
// §4.3: header/footer-framed blocks, coalescing free, optional page-aligned
// allocation via a three-way split, and expand/contract of the backing
// virtual range. There is no single biscuit file this is grounded on
// (biscuit is a garbage-collected Go kernel and never implements a malloc
// of its own) — the allocation algorithm itself is built from §4.3's
// description directly; the surrounding Go idiom (constructor functions,
// fatal conditions as mem.FaultError panics, Roundup via kutil) follows
// biscuit's conventions throughout biscuit/src. Heap has no lock of its own;
// it takes the owning AddressSpace's lock only while mapping or unmapping.
package heap

import (
	"github.com/Alec-Sobeck/Operating-System/internal/kutil"
	"github.com/Alec-Sobeck/Operating-System/internal/mem"
	"github.com/Alec-Sobeck/Operating-System/internal/paging"
)

// HEAP_MAGIC tags every header and footer; a mismatch anywhere is a fatal
// corruption per §7.
const HEAP_MAGIC uint32 = 0x600dc0de

// HEAP_MIN_SIZE is the floor below which a heap is never contracted.
const HEAP_MIN_SIZE int = 40 * 1024

const (
	headerSize = 16 // magic(4) + ishole(4) + size(8)
	footerSize = 16 // magic(4) + pad(4) + headerAddr(8)
	wordSize   = 8
)

// blockHeader frames an allocated or free region. Size includes the header
// and footer. Fields are kept as a Go-level bookkeeping record (looked up by
// address in the owning Heap's maps) rather than byte-packed into the
// mapped pages: the payload bytes callers receive are real, frame-backed
// memory reachable through the owning AddressSpace, but the header/footer
// relationship the invariants below describe (matching magics, footer
// back-pointer) is checked at this bookkeeping layer instead of by decoding
// a wire format, which needs no unsafe.Pointer games to stay correct.
type blockHeader struct {
	Magic  uint32
	IsHole bool
	Size   int
	Addr   uintptr
}

type blockFooter struct {
	Magic  uint32
	Header *blockHeader
	Addr   uintptr
}

// PageLimiter is the system-wide ceiling a heap debits whenever it commits
// fresh pages and credits back whenever it releases them. *limits.Sysatomic
// already satisfies this (Taken(n uint) bool / Given(n uint)); a nil
// Limiter is the common case in tests that don't care about global limits.
type PageLimiter interface {
	Taken(n uint) bool
	Given(n uint)
}

// Heap is one process's growable heap.
type Heap struct {
	AS  *paging.AddressSpace
	Sup bool // pages acquired by this heap are supervisor-only
	RO  bool // pages acquired by this heap are read-only

	Start uintptr
	End   uintptr
	Max   uintptr

	// Limiter, if set, bounds how many pages this heap may have committed
	// system-wide (summed across every heap sharing it). expand debits it
	// before growing and fails with HeapExhausted-style panic if it
	// refuses; contract credits back whatever it releases.
	Limiter PageLimiter

	index   *index
	headers map[uintptr]*blockHeader
	footers map[uintptr]*blockFooter
}

// Pages reports how many pages are currently committed to this heap's
// virtual range, for diagnostic/profiling snapshots.
func (h *Heap) Pages() int64 {
	return int64(h.End-h.Start) / int64(mem.PGSIZE)
}

// New creates a heap covering [start, start+initial) within as, growable up
// to max. The initial range is committed and framed as one large hole.
func New(as *paging.AddressSpace, start uintptr, initial int, max uintptr) *Heap {
	h := &Heap{
		AS:      as,
		Start:   start,
		End:     start,
		Max:     max,
		index:   newIndex(),
		headers: make(map[uintptr]*blockHeader),
		footers: make(map[uintptr]*blockFooter),
	}
	h.commit(start, kutil.Roundup(initial, mem.PGSIZE))
	h.End = start + uintptr(kutil.Roundup(initial, mem.PGSIZE))
	h.installHole(h.Start, int(h.End-h.Start))
	return h
}

// Clone deep-copies this heap's bookkeeping (header/footer records and the
// size-ordered index) onto as, which must already be a page-table-level
// clone of the address space this heap lives in — so every virtual address
// recorded here already names live, correctly-backed memory in as. This is
// fork's heap-metadata duplication step (§4.5.4): only the free-list
// structure is duplicated, never the bytes themselves, since those already
// exist by virtue of the address-space clone.
func (h *Heap) Clone(as *paging.AddressSpace) *Heap {
	nh := &Heap{
		AS:      as,
		Sup:     h.Sup,
		RO:      h.RO,
		Start:   h.Start,
		End:     h.End,
		Max:     h.Max,
		Limiter: h.Limiter,
		index:   newIndex(),
		headers: make(map[uintptr]*blockHeader, len(h.headers)),
		footers: make(map[uintptr]*blockFooter, len(h.footers)),
	}
	for addr, hdr := range h.headers {
		cp := *hdr
		nh.headers[addr] = &cp
	}
	for addr, ftr := range h.footers {
		cp := blockFooter{Magic: ftr.Magic, Addr: ftr.Addr, Header: nh.headers[ftr.Header.Addr]}
		nh.footers[addr] = &cp
	}
	for _, hdr := range h.index.entries {
		nh.index.insert(nh.headers[hdr.Addr])
	}
	return nh
}

// commit maps n bytes (must be a multiple of PGSIZE) of fresh, zeroed frames
// starting at va into the owning address space.
func (h *Heap) commit(va uintptr, n int) {
	h.AS.Lock()
	defer h.AS.Unlock()
	perms := mem.PTE_W
	if !h.Sup {
		perms |= mem.PTE_U
	}
	if h.RO {
		perms &^= mem.PTE_W
	}
	for off := 0; off < n; off += mem.PGSIZE {
		pa := h.AS.Phys.AllocFrame()
		h.AS.MapPage(va+uintptr(off), pa, perms)
	}
}

// release unmaps and frees n bytes (a multiple of PGSIZE) starting at va.
func (h *Heap) release(va uintptr, n int) {
	h.AS.Lock()
	defer h.AS.Unlock()
	for off := 0; off < n; off += mem.PGSIZE {
		h.AS.UnmapPage(va + uintptr(off))
	}
}

func (h *Heap) installHole(addr uintptr, size int) *blockHeader {
	hdr := &blockHeader{Magic: HEAP_MAGIC, IsHole: true, Size: size, Addr: addr}
	ftr := &blockFooter{Magic: HEAP_MAGIC, Header: hdr, Addr: addr + uintptr(size) - footerSize}
	h.headers[addr] = hdr
	h.footers[ftr.Addr] = ftr
	h.index.insert(hdr)
	return hdr
}

func (h *Heap) installBlock(addr uintptr, size int, isHole bool) (*blockHeader, *blockFooter) {
	hdr := &blockHeader{Magic: HEAP_MAGIC, IsHole: isHole, Size: size, Addr: addr}
	ftr := &blockFooter{Magic: HEAP_MAGIC, Header: hdr, Addr: addr + uintptr(size) - footerSize}
	h.headers[addr] = hdr
	h.footers[ftr.Addr] = ftr
	return hdr, ftr
}

func (h *Heap) removeBlock(hdr *blockHeader) {
	ftrAddr := hdr.Addr + uintptr(hdr.Size) - footerSize
	delete(h.headers, hdr.Addr)
	delete(h.footers, ftrAddr)
}

// tailHole returns the hole header ending exactly at the heap's current
// End, if any.
func (h *Heap) tailHole() (*blockHeader, bool) {
	if h.End == h.Start {
		return nil, false
	}
	ftr, ok := h.footers[h.End-footerSize]
	if !ok || !ftr.Header.IsHole {
		return nil, false
	}
	return ftr.Header, true
}

// Alloc finds or creates a hole of sufficient size and returns the address
// just past its header, per §4.3's five-step algorithm.
func (h *Heap) Alloc(size int, pageAligned bool) uintptr {
	size = kutil.Roundup(size, wordSize)
	full := size + headerSize + footerSize

	for {
		hdr, shift, ok := h.index.findBestFit(full, pageAligned)
		if ok {
			return h.carve(hdr, shift, full, pageAligned)
		}
		h.expand(full, pageAligned)
	}
}

// expand grows the heap to make room for at least `need` more bytes,
// committing frames over the new range and merging with (or creating) a
// tail hole.
func (h *Heap) expand(need int, pageAligned bool) {
	if pageAligned {
		need += 2 * mem.PGSIZE // alignment slack, per §4.3 step 3
	}
	grow := kutil.Roundup(need, mem.PGSIZE)
	if h.End+uintptr(grow) > h.Max {
		panic(mem.FaultError{Msg: "heap: expansion past maximum address"})
	}
	if h.Limiter != nil && !h.Limiter.Taken(uint(grow/mem.PGSIZE)) {
		panic(mem.FaultError{Msg: "heap: expansion past system-wide page limit"})
	}
	oldEnd := h.End
	h.commit(oldEnd, grow)
	h.End += uintptr(grow)

	if tail, ok := h.tailHole(); ok {
		h.index.remove(tail)
		h.removeBlock(tail)
		h.installHole(tail.Addr, tail.Size+grow)
	} else {
		h.installHole(oldEnd, grow)
	}
}

// carve removes hdr from the index, splits off alignment slack and/or a
// trailing remainder as needed, installs the allocated block's header and
// footer, and returns the address just past the header.
func (h *Heap) carve(hdr *blockHeader, shift int, full int, pageAligned bool) uintptr {
	h.index.remove(hdr)
	h.removeBlock(hdr)

	addr := hdr.Addr
	total := hdr.Size

	if pageAligned && shift > 0 {
		h.installHole(addr, shift)
		addr += uintptr(shift)
		total -= shift
	}

	remainder := total - full
	if remainder >= headerSize+footerSize+wordSize {
		h.installBlock(addr, full, false)
		h.installHole(addr+uintptr(full), remainder)
	} else {
		// absorb remainder into the allocated block.
		h.installBlock(addr, total, false)
	}
	return addr + headerSize
}

// Free releases the block whose header precedes ptr, coalescing with
// adjacent holes and contracting the heap if the resulting hole reaches the
// current End, per §4.3.
func (h *Heap) Free(ptr uintptr) {
	if ptr == 0 {
		return // freeing a null pointer is a silent no-op, per §7.
	}
	addr := ptr - headerSize
	hdr, ok := h.headers[addr]
	if !ok || hdr.Magic != HEAP_MAGIC {
		panic(mem.FaultError{Msg: "heap: free of invalid pointer (magic mismatch)"})
	}
	h.removeBlock(hdr)
	hdr.IsHole = true
	h.mergeNeighbors(&hdr)

	// contract if the merged hole reaches End.
	if hdr.Addr+uintptr(hdr.Size) == h.End {
		h.contract(hdr)
		return
	}
	h.installHoleFromHeader(hdr)
}

// mergeNeighbors coalesces *hdr with its immediate predecessor and successor
// blocks while they are holes, updating *hdr in place to describe the
// merged extent. Both neighbors, if absorbed, are removed from the index
// and the bookkeeping maps.
func (h *Heap) mergeNeighbors(hdr **blockHeader) {
	cur := *hdr
	// predecessor
	if cur.Addr != h.Start {
		if pf, ok := h.footers[cur.Addr-footerSize]; ok && pf.Header.IsHole && pf.Header != cur {
			prev := pf.Header
			h.index.remove(prev)
			h.removeBlock(prev)
			newSize := prev.Size + cur.Size
			cur = &blockHeader{Magic: HEAP_MAGIC, IsHole: true, Size: newSize, Addr: prev.Addr}
		}
	}
	// successor
	nextAddr := cur.Addr + uintptr(cur.Size)
	if nextAddr != h.End {
		if nh, ok := h.headers[nextAddr]; ok && nh.IsHole {
			h.index.remove(nh)
			h.removeBlock(nh)
			cur = &blockHeader{Magic: HEAP_MAGIC, IsHole: true, Size: cur.Size + nh.Size, Addr: cur.Addr}
		}
	}
	*hdr = cur
}

func (h *Heap) installHoleFromHeader(hdr *blockHeader) {
	h.installHole(hdr.Addr, hdr.Size)
}

// contract shrinks the heap so the merged trailing hole described by hdr is
// released back to the frame allocator, floored at HEAP_MIN_SIZE and
// rounded up to a page.
func (h *Heap) contract(hdr *blockHeader) {
	curLen := int(h.End - h.Start)
	shrinkable := hdr.Size
	newLen := curLen - shrinkable
	if newLen < HEAP_MIN_SIZE {
		newLen = HEAP_MIN_SIZE
	}
	newLen = kutil.Roundup(newLen, mem.PGSIZE)
	if newLen >= curLen {
		// nothing to release; keep the whole hole indexed.
		h.installHoleFromHeader(hdr)
		return
	}
	newEnd := h.Start + uintptr(newLen)
	released := int(h.End - newEnd)
	h.release(newEnd, released)
	h.End = newEnd
	if h.Limiter != nil {
		h.Limiter.Given(uint(released / mem.PGSIZE))
	}

	remaining := hdr.Size - released
	if remaining > 0 {
		h.installHole(hdr.Addr, remaining)
	}
}
