package paging

import (
	"testing"

	"github.com/Alec-Sobeck/Operating-System/internal/mem"
)

func newTestKernel(t *testing.T, frames uint32) (*mem.Physmem, *Directory) {
	t.Helper()
	phys := mem.NewPhysmem(frames)
	kdir := NewDirectory(phys)
	// map one kernel page so kernel-sharing has something to exercise.
	kas := &AddressSpace{Phys: phys, Dir: kdir, kernelDir: kdir}
	kas.Lock()
	pa := phys.AllocFrame()
	kas.MapPage(mem.KERNMIN, pa, mem.PTE_W)
	kas.Unlock()
	return phys, kdir
}

func TestMapAndTranslate(t *testing.T) {
	phys, kdir := newTestKernel(t, 64)
	as := New(phys, kdir)
	as.Lock()
	pa := phys.AllocFrame()
	as.MapPage(mem.USERMIN, pa, mem.PTE_W|mem.PTE_U)
	view, err := as.Translate(mem.USERMIN)
	as.Unlock()
	if err != 0 {
		t.Fatalf("Translate failed: %v", err)
	}
	view[0] = 42
	got := phys.Dmap(pa)
	if got[0] != 42 {
		t.Fatalf("Translate did not alias physical frame")
	}
}

func TestTranslateUnmappedFaults(t *testing.T) {
	phys, kdir := newTestKernel(t, 64)
	as := New(phys, kdir)
	as.Lock()
	_, err := as.Translate(mem.USERMIN)
	as.Unlock()
	if err == 0 {
		t.Fatal("expected EFAULT for unmapped address")
	}
}

func TestCloneSharesKernelCopiesUser(t *testing.T) {
	phys, kdir := newTestKernel(t, 64)
	parent := New(phys, kdir)
	parent.Lock()
	upa := phys.AllocFrame()
	parent.MapPage(mem.USERMIN, upa, mem.PTE_W|mem.PTE_U)
	view, _ := parent.Translate(mem.USERMIN)
	copy(view, []byte("parent"))
	parent.Unlock()

	child := parent.Clone()

	// kernel slot must be linked (same table pointer via identical PTE).
	kslot := mem.KernelSlot(mem.KERNMIN)
	if parent.Dir.slots[kslot].table != child.Dir.slots[kslot].table {
		t.Fatal("kernel slot should be shared (linked), not copied")
	}

	// user slot must be deep-copied: child sees a copy, not an alias.
	child.Lock()
	cview, err := child.Translate(mem.USERMIN)
	if err != 0 {
		t.Fatalf("child translate failed: %v", err)
	}
	if string(cview[:6]) != "parent" {
		t.Fatalf("child did not inherit parent's data: got %q", cview[:6])
	}
	cview[0] = 'X'
	child.Unlock()

	parent.Lock()
	pview, _ := parent.Translate(mem.USERMIN)
	parent.Unlock()
	if pview[0] == 'X' {
		t.Fatal("writes to child's copy leaked into parent (not isolated)")
	}
}

func TestDestroyDirectoryFreesUserFramesNotKernel(t *testing.T) {
	phys, kdir := newTestKernel(t, 64)
	before := phys.CountFree()

	as := New(phys, kdir)
	as.Lock()
	as.MapPage(mem.USERMIN, phys.AllocFrame(), mem.PTE_W|mem.PTE_U)
	as.Unlock()

	as.Destroy()

	after := phys.CountFree()
	if after != before {
		t.Fatalf("frames leaked: before=%d after=%d", before, after)
	}
}

func TestUnmapPageFreesFrame(t *testing.T) {
	phys, kdir := newTestKernel(t, 64)
	as := New(phys, kdir)
	as.Lock()
	pa := phys.AllocFrame()
	as.MapPage(mem.USERMIN, pa, mem.PTE_W|mem.PTE_U)
	if !as.UnmapPage(mem.USERMIN) {
		t.Fatal("expected UnmapPage to report a removed mapping")
	}
	as.Unlock()
	if phys.IsPresent(pa) {
		t.Fatal("frame should be freed after unmap")
	}
}
