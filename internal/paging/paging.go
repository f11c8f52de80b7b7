// Package paging implements the two-level page table and directory model
// described in §4.2: directory cloning with shared kernel
// mappings and deep-copied user mappings, page-table construction, and
// virtual-to-physical translation. It is adapted from biscuit's vm/as.go
// and mem/dmap.go, generalized from biscuit's real 4-level paging down to
// this core's 2-level, 32-bit scheme, and backed by the simulated physical
// arena in internal/mem instead of real hardware.
package paging

import (
	"fmt"

	"github.com/Alec-Sobeck/Operating-System/internal/mem"
)

// PageTable is one page table: NPDENTRIES page-table entries, each an
// mem.Pa_t packing a frame address with control flags. A PageTable always
// claims a frame from the owning Physmem as a bookkeeping token, mirroring
// biscuit's invariant that page tables are themselves page-aligned,
// physically-backed objects rather than ordinary Go heap values.
type PageTable struct {
	Entries [mem.NPDENTRIES]mem.Pa_t
	PA      mem.Pa_t
}

// dirSlot is one directory entry: a reference to the page table covering
// that 4 MiB region, its physical address, and the PDE-level flags.
type dirSlot struct {
	table *PageTable
	tpa   mem.Pa_t
	flags mem.Pa_t
}

func (s dirSlot) empty() bool { return s.table == nil }

// Directory is one 1024-slot page directory: one process address space's
// top-level page table.
type Directory struct {
	slots [mem.NPDENTRIES]dirSlot
	PA    mem.Pa_t
}

// NewDirectory allocates a fresh, empty page directory.
func NewDirectory(phys *mem.Physmem) *Directory {
	pa := phys.AllocFrame()
	return &Directory{PA: pa}
}

// newPageTable allocates a fresh, empty page table.
func newPageTable(phys *mem.Physmem) *PageTable {
	pa := phys.AllocFrame()
	return &PageTable{PA: pa}
}

// GetPage indexes into the directory for the page table entry covering va.
// If the covering slot is empty and make is true, a new page table is
// allocated (page-aligned, per the frame allocator) and installed with the
// given PDE flags; otherwise GetPage returns (nil, false) for an absent
// slot. This mirrors get_page(virtual_addr, make, directory) from §4.2.
func (d *Directory) GetPage(phys *mem.Physmem, va uintptr, make_ bool, flags mem.Pa_t) (*mem.Pa_t, bool) {
	sidx := va / uintptr(mem.PDESIZE)
	if int(sidx) >= mem.NPDENTRIES {
		panic(mem.FaultError{Msg: fmt.Sprintf("paging: va %#x out of range", va)})
	}
	slot := &d.slots[sidx]
	if slot.empty() {
		if !make_ {
			return nil, false
		}
		slot.table = newPageTable(phys)
		slot.tpa = slot.table.PA
		slot.flags = flags | mem.PTE_P
	}
	pidx := (va % uintptr(mem.PDESIZE)) / uintptr(mem.PGSIZE)
	return &slot.table.Entries[pidx], true
}

// Lookup is a read-only variant of GetPage: it never installs a page table.
func (d *Directory) Lookup(va uintptr) (mem.Pa_t, bool) {
	pte, ok := d.GetPage(nil, va, false, 0)
	if !ok {
		return 0, false
	}
	return *pte, true
}

func slotsIdentical(a, b dirSlot) bool {
	return a.table == b.table && a.tpa == b.tpa
}

// CloneDirectory produces a deep-enough copy of src: directory slots that
// are identical to the corresponding slot in the kernel directory are
// *linked* (the clone shares the same PageTable); every other non-empty
// slot is deep-copied via copyTable. Kernel mappings are always shared;
// user mappings are always private — per the invariant in §4.2.
func CloneDirectory(phys *mem.Physmem, src, kernelDir *Directory) *Directory {
	dst := NewDirectory(phys)
	for i := 0; i < mem.NPDENTRIES; i++ {
		s := src.slots[i]
		if s.empty() {
			continue
		}
		if i < len(kernelDir.slots) && slotsIdentical(s, kernelDir.slots[i]) {
			dst.slots[i] = s // link: share the table
			continue
		}
		dst.slots[i] = dirSlot{
			table: copyTable(phys, s.table),
			flags: s.flags,
		}
		dst.slots[i].tpa = dst.slots[i].table.PA
	}
	return dst
}

// copyTable allocates a fresh page table and, for every present source
// page, a fresh destination frame whose contents and flags are copied from
// the source. Biscuit performs this copy through two reserved "copy
// window" virtual addresses in the kernel directory and flushes the TLB
// after each remap; since this module's physical memory is a flat []byte
// arena rather than real hardware, the copy is a direct Dmap-to-Dmap byte
// copy with no TLB involved, which is the hosted equivalent of that
// remap-and-flush dance.
func copyTable(phys *mem.Physmem, src *PageTable) *PageTable {
	dst := newPageTable(phys)
	for i, pte := range src.Entries {
		if pte&mem.PTE_P == 0 {
			continue
		}
		srcFrame := pte & mem.PTE_ADDR
		dstFrame := phys.AllocFrame()
		copy(phys.Dmap(dstFrame)[:mem.PGSIZE], phys.Dmap(srcFrame)[:mem.PGSIZE])
		flags := pte &^ mem.PTE_ADDR
		dst.Entries[i] = dstFrame | flags
	}
	return dst
}

// DestroyDirectory frees every present frame in every non-kernel,
// non-empty slot, then the page tables themselves, then the directory's own
// frame. Kernel-linked slots are left untouched: their page tables are
// shared with other live address spaces (or the kernel directory itself).
func DestroyDirectory(phys *mem.Physmem, d *Directory, kernelDir *Directory) {
	for i := 0; i < mem.NPDENTRIES; i++ {
		s := d.slots[i]
		if s.empty() {
			continue
		}
		if i < len(kernelDir.slots) && slotsIdentical(s, kernelDir.slots[i]) {
			continue
		}
		for _, pte := range s.table.Entries {
			if pte&mem.PTE_P != 0 {
				phys.FreeFrame(pte & mem.PTE_ADDR)
			}
		}
		phys.FreeFrame(s.table.PA)
		d.slots[i] = dirSlot{}
	}
	phys.FreeFrame(d.PA)
}
