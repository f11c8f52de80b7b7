package heap

import (
	"testing"

	"github.com/Alec-Sobeck/Operating-System/internal/limits"
	"github.com/Alec-Sobeck/Operating-System/internal/mem"
	"github.com/Alec-Sobeck/Operating-System/internal/paging"
)

func newTestHeap(t *testing.T, frames uint32, initial int, max int) (*Heap, *mem.Physmem) {
	t.Helper()
	phys := mem.NewPhysmem(frames)
	kdir := paging.NewDirectory(phys)
	as := paging.New(phys, kdir)
	start := uintptr(0x40000000)
	h := New(as, start, initial, start+uintptr(max))
	return h, phys
}

func TestAllocReturnsDistinctNonOverlappingRegions(t *testing.T) {
	h, _ := newTestHeap(t, 256, 8*mem.PGSIZE, 64*mem.PGSIZE)
	a := h.Alloc(64, false)
	b := h.Alloc(128, false)
	if a == b {
		t.Fatal("two live allocations aliased")
	}
	if b >= a && b < a+64+uintptr(footerSize) {
		t.Fatal("allocations overlap")
	}
}

func TestAllocThenFreeCoalescesToSingleHole(t *testing.T) {
	h, _ := newTestHeap(t, 256, 4*mem.PGSIZE, 64*mem.PGSIZE)
	a := h.Alloc(100, false)
	b := h.Alloc(200, false)
	c := h.Alloc(50, false)
	h.Free(a)
	h.Free(b)
	h.Free(c)

	if len(h.index.entries) != 1 {
		t.Fatalf("expected one coalesced hole, got %d entries", len(h.index.entries))
	}
	hole := h.index.entries[0]
	if hole.Addr != h.Start || hole.Size != int(h.End-h.Start) {
		t.Fatalf("coalesced hole does not span the whole heap: addr=%#x size=%d", hole.Addr, hole.Size)
	}
}

func TestAllocGrowsHeapWhenNoFitExists(t *testing.T) {
	h, _ := newTestHeap(t, 256, mem.PGSIZE, 64*mem.PGSIZE)
	before := h.End
	h.Alloc(mem.PGSIZE*2, false)
	if h.End <= before {
		t.Fatal("heap should have expanded to satisfy an oversized request")
	}
}

func TestAllocPageAlignedReturnsAlignedPayload(t *testing.T) {
	h, _ := newTestHeap(t, 256, 16*mem.PGSIZE, 64*mem.PGSIZE)
	// pre-allocate something to throw off natural alignment.
	h.Alloc(17, false)
	ptr := h.Alloc(64, true)
	if ptr%uintptr(mem.PGSIZE) != 0 {
		t.Fatalf("page-aligned allocation not aligned: %#x", ptr)
	}
}

func TestFreeOfBadPointerPanics(t *testing.T) {
	h, _ := newTestHeap(t, 256, 4*mem.PGSIZE, 64*mem.PGSIZE)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on free of unknown pointer")
		}
	}()
	h.Free(h.Start + 99999)
}

func TestFreeOfNullIsNoop(t *testing.T) {
	h, _ := newTestHeap(t, 256, 4*mem.PGSIZE, 64*mem.PGSIZE)
	h.Free(0) // must not panic
}

func TestContractReleasesFramesBackToPhysmem(t *testing.T) {
	h, phys := newTestHeap(t, 256, 2*mem.PGSIZE, 256*mem.PGSIZE)
	freeBefore := phys.CountFree()
	ptr := h.Alloc(mem.PGSIZE*20, false)
	afterAlloc := phys.CountFree()
	if afterAlloc >= freeBefore {
		t.Fatal("expected frames to be committed for a large allocation")
	}
	h.Free(ptr)
	afterFree := phys.CountFree()
	if afterFree <= afterAlloc {
		t.Fatal("expected contraction to release frames after freeing the whole tail")
	}
}

func TestAllocatedDataSurvivesThroughAddressSpace(t *testing.T) {
	h, _ := newTestHeap(t, 256, 4*mem.PGSIZE, 64*mem.PGSIZE)
	ptr := h.Alloc(16, false)
	if err := h.AS.WriteBytes(ptr, []byte("hello")); err != 0 {
		t.Fatalf("write through allocated heap memory failed: %v", err)
	}
	got, err := h.AS.ReadBytes(ptr, 5)
	if err != 0 {
		t.Fatalf("read back failed: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandPastPageLimiterPanics(t *testing.T) {
	h, _ := newTestHeap(t, 256, 1*mem.PGSIZE, 64*mem.PGSIZE)
	h.Limiter = limits.NewSysatomic(0)

	defer func() {
		if recover() == nil {
			t.Fatal("expected expansion past the page limiter to panic")
		}
	}()
	h.Alloc(1*mem.PGSIZE, false)
}

func TestContractGivesPagesBackToLimiter(t *testing.T) {
	h, _ := newTestHeap(t, 512, 1*mem.PGSIZE, 300*mem.PGSIZE)
	lim := limits.NewSysatomic(50)
	h.Limiter = lim

	// big enough that, once freed, the merged hole comfortably exceeds
	// HEAP_MIN_SIZE and contraction actually releases pages.
	ptr := h.Alloc(40*mem.PGSIZE, false)
	afterExpand := lim.Remaining()
	if afterExpand >= 50 {
		t.Fatalf("expected the limiter to be debited by expansion, got %d remaining", afterExpand)
	}

	h.Free(ptr)
	if lim.Remaining() <= afterExpand {
		t.Fatalf("expected contraction to credit pages back, still at %d", lim.Remaining())
	}
}
