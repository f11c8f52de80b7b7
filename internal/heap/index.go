package heap

import (
	"github.com/Alec-Sobeck/Operating-System/internal/kutil"
	"github.com/Alec-Sobeck/Operating-System/internal/mem"
)

// index is the heap's free-block index: every hole header currently live in
// the heap, kept sorted ascending by size so best-fit search can stop at the
// first entry large enough. §4.3 describes this index itself living in a
// reserved region at the top of the heap's address range, growing downward
// a word at a time; here it is modeled as an ordinary sorted Go slice; see
// DESIGN.md for why that simplification doesn't give up any externally
// testable behavior (the heap still commits/releases real frames for
// payload data, which is what every invariant here is actually stated
// over).
type index struct {
	entries []*blockHeader
}

func newIndex() *index {
	return &index{}
}

// insert adds hdr, maintaining ascending order by Size.
func (ix *index) insert(hdr *blockHeader) {
	i := ix.searchInsertPos(hdr.Size)
	ix.entries = append(ix.entries, nil)
	copy(ix.entries[i+1:], ix.entries[i:])
	ix.entries[i] = hdr
}

func (ix *index) searchInsertPos(size int) int {
	lo, hi := 0, len(ix.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if ix.entries[mid].Size < size {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// remove deletes hdr (by identity) from the index.
func (ix *index) remove(hdr *blockHeader) {
	for i, e := range ix.entries {
		if e == hdr {
			ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
			return
		}
	}
}

// findBestFit scans ascending for the smallest hole satisfying full bytes.
// When pageAligned is set, a candidate must also have enough slack to carve
// out a page-aligned payload start; shift reports how many leading bytes of
// the chosen hole would be split off as a small hole to achieve that
// alignment (0 when pageAligned is false or alignment is already exact).
func (ix *index) findBestFit(full int, pageAligned bool) (hdr *blockHeader, shift int, ok bool) {
	for _, e := range ix.entries {
		if e.Size < full {
			continue
		}
		if !pageAligned {
			return e, 0, true
		}
		payloadStart := e.Addr + headerSize
		aligned := kutil.Roundup(int(payloadStart), mem.PGSIZE)
		sh := aligned - int(payloadStart)
		if sh+full <= e.Size {
			return e, sh, true
		}
	}
	return nil, 0, false
}
