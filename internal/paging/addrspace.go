package paging

import (
	"sync"

	"github.com/Alec-Sobeck/Operating-System/internal/defs"
	"github.com/Alec-Sobeck/Operating-System/internal/mem"
)

// Activator is the HAL port an AddressSpace notifies when it becomes the
// active address space — the hosted stand-in for writing the MMU's
// directory-base register and toggling the paging-enable bit. A bare-metal
// embedder supplies the real implementation; tests can supply a recording
// fake, or nothing at all (Activate tolerates a nil sink).
type Activator interface {
	Activate(pa mem.Pa_t)
}

// AddressSpace is one process's virtual memory, wrapping a Directory with
// the locking discipline biscuit's Vm_t uses: every read/write that walks
// or mutates page tables holds the mutex, and pgfltaken records that fact
// so Lockassert_pmap can catch callers that forgot to take it.
type AddressSpace struct {
	mu        sync.Mutex
	pgfltaken bool

	Phys *mem.Physmem
	Dir  *Directory

	kernelDir *Directory
}

// New creates a fresh, empty address space sharing phys's frame allocator
// and kernelDir's kernel-half mappings.
func New(phys *mem.Physmem, kernelDir *Directory) *AddressSpace {
	dir := NewDirectory(phys)
	for i, s := range kernelDir.slots {
		if !s.empty() {
			dir.slots[i] = s // link: share the kernel's table
		}
	}
	return &AddressSpace{
		Phys:      phys,
		Dir:       dir,
		kernelDir: kernelDir,
	}
}

// Clone deep-copies the user half of as's directory and links the kernel
// half, returning a new, independent AddressSpace. This implements fork's
// first step (§4.5).
func (as *AddressSpace) Clone() *AddressSpace {
	as.Lock()
	defer as.Unlock()
	return &AddressSpace{
		Phys:      as.Phys,
		Dir:       CloneDirectory(as.Phys, as.Dir, as.kernelDir),
		kernelDir: as.kernelDir,
	}
}

// Destroy releases every user-owned frame and page table in this address
// space. Called during exit teardown (§4.6).
func (as *AddressSpace) Destroy() {
	as.Lock()
	defer as.Unlock()
	DestroyDirectory(as.Phys, as.Dir, as.kernelDir)
}

// Activate notifies sink that this address space's directory is now the
// active one. A nil sink is a no-op, which keeps tests that don't care
// about HAL wiring simple.
func (as *AddressSpace) Activate(sink Activator) {
	if sink != nil {
		sink.Activate(as.Dir.PA)
	}
}

// Lock acquires the address-space mutex and marks that page-table work is
// in progress.
func (as *AddressSpace) Lock() {
	as.mu.Lock()
	as.pgfltaken = true
}

// Unlock releases the address-space mutex.
func (as *AddressSpace) Unlock() {
	as.pgfltaken = false
	as.mu.Unlock()
}

// lockassert panics if the caller has not taken the address-space lock —
// every unexported helper below assumes this, matching biscuit's
// Lockassert_pmap used throughout vm/as.go.
func (as *AddressSpace) lockassert() {
	if !as.pgfltaken {
		panic(mem.FaultError{Msg: "paging: address-space lock must be held"})
	}
}

// MapPage installs pa at va with the given permission flags (which should
// only set PTE_U/PTE_W; PTE_P is added automatically). It returns whether an
// existing present mapping was replaced, mirroring Page_insert from §4.2.
func (as *AddressSpace) MapPage(va uintptr, pa mem.Pa_t, perms mem.Pa_t) bool {
	as.lockassert()
	pte, ok := as.Dir.GetPage(as.Phys, va, true, mem.PTE_U|mem.PTE_W|mem.PTE_P)
	if !ok {
		panic(mem.FaultError{Msg: "paging: GetPage(make=true) failed"})
	}
	replaced := *pte&mem.PTE_P != 0
	*pte = pa | perms | mem.PTE_P
	return replaced
}

// UnmapPage clears any mapping at va, freeing the backing frame. It reports
// whether a mapping existed.
func (as *AddressSpace) UnmapPage(va uintptr) bool {
	as.lockassert()
	pte, ok := as.Dir.GetPage(as.Phys, va, false, 0)
	if !ok || *pte&mem.PTE_P == 0 {
		return false
	}
	old := *pte & mem.PTE_ADDR
	*pte = 0
	as.Phys.FreeFrame(old)
	return true
}

// Translate resolves va to its backing direct-mapped byte slice (truncated
// at the end of the containing page), or returns EFAULT if unmapped. It is
// the hosted equivalent of Userdmap8_inner.
func (as *AddressSpace) Translate(va uintptr) ([]byte, defs.Err_t) {
	as.lockassert()
	pte, ok := as.Dir.GetPage(as.Phys, va, false, 0)
	if !ok || *pte&mem.PTE_P == 0 {
		return nil, -defs.EFAULT
	}
	voff := va & uintptr(mem.PGOFFSET)
	pa := (*pte & mem.PTE_ADDR) | mem.Pa_t(voff)
	return as.Phys.Dmap(pa), 0
}

// ReadBytes copies n bytes starting at va into a freshly allocated slice,
// walking page boundaries as needed.
func (as *AddressSpace) ReadBytes(va uintptr, n int) ([]byte, defs.Err_t) {
	as.Lock()
	defer as.Unlock()
	out := make([]byte, n)
	off := 0
	for off < n {
		src, err := as.Translate(va + uintptr(off))
		if err != 0 {
			return nil, err
		}
		c := copy(out[off:], src)
		off += c
	}
	return out, 0
}

// WriteBytes copies src into the address space starting at va, walking
// page boundaries as needed.
func (as *AddressSpace) WriteBytes(va uintptr, src []byte) defs.Err_t {
	as.Lock()
	defer as.Unlock()
	off := 0
	for off < len(src) {
		dst, err := as.Translate(va + uintptr(off))
		if err != 0 {
			return err
		}
		c := copy(dst, src[off:])
		off += c
	}
	return 0
}
