package sched

import (
	"sync"

	"github.com/Alec-Sobeck/Operating-System/internal/defs"
	"github.com/Alec-Sobeck/Operating-System/internal/heap"
	"github.com/Alec-Sobeck/Operating-System/internal/ipc"
	"github.com/Alec-Sobeck/Operating-System/internal/ktable"
	"github.com/Alec-Sobeck/Operating-System/internal/limits"
	"github.com/Alec-Sobeck/Operating-System/internal/mem"
	"github.com/Alec-Sobeck/Operating-System/internal/paging"
)

// Kernel is the process-wide singleton described in §3 and §9's "global
// mutable state" design note: one value, constructed once at bootstrap,
// owning every table the syscall handlers touch. mu is the single kernel
// lock from §5 — every syscall handler takes it on entry and only releases
// it at the documented suspension points inside schedule().
type Kernel struct {
	mu sync.Mutex

	Phys      *mem.Physmem
	KernelDir *paging.Directory
	Limits    *limits.Sys

	tasks *ktable.Table[defs.Pid_t, *Task]
	sems  *ktable.Table[defs.SemId_t, *ipc.Semaphore]
	pipes *ktable.Table[defs.PipeId_t, *ipc.Pipe]

	ready    []*Task
	sleeping []*Task
	current  *Task

	nextPid  int64
	nextSem  int64
	nextPipe int64

	idle *Task

	// activator is the HAL address-space-switch sink (§1's "privilege/
	// address-space switch notification sink"); nil is fine, Activate
	// tolerates it.
	activator paging.Activator
}

// SetActivator wires the HAL port notified whenever the scheduler switches
// to a new task's address space. Call it once after New, before Bootstrap.
func (k *Kernel) SetActivator(a paging.Activator) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.activator = a
}

// Heap layout constants from §6's memory-layout table.
const (
	UserHeapStart  = mem.USERMIN
	UserHeapInit   = 0xA000
	UserHeapMax    = mem.USERMAX
	KernelHeapBase = mem.KERNMIN
)

// New constructs a Kernel over nframes physical frames and an otherwise
// empty kernel directory; Bootstrap must be called once before scheduling
// begins.
func New(nframes uint32) *Kernel {
	phys := mem.NewPhysmem(nframes)
	return &Kernel{
		Phys:      phys,
		KernelDir: paging.NewDirectory(phys),
		Limits:    limits.Default(),
		tasks:     ktable.NewIntTable[defs.Pid_t, *Task](64),
		sems:      ktable.NewIntTable[defs.SemId_t, *ipc.Semaphore](64),
		pipes:     ktable.NewIntTable[defs.PipeId_t, *ipc.Pipe](64),
	}
}

// Bootstrap creates and enqueues the idle task (pinned to IdlePid per §7)
// and returns it. It must run exactly once, before any Fork.
func (k *Kernel) Bootstrap() *Task {
	k.mu.Lock()
	defer k.mu.Unlock()

	as := paging.New(k.Phys, k.KernelDir)
	h := heap.New(as, UserHeapStart, UserHeapInit, UserHeapMax)
	h.Limiter = k.Limits.MaxHeapPages
	idle := newTask(IdlePid, as, h, PriorityIdle, nil)
	k.nextPid = int64(IdlePid) + 1
	k.idle = idle
	k.tasks.Set(idle.ID, idle)
	k.current = idle
	idle.State = Running

	// The idle task is the bootstrap goroutine's own continuation: it is
	// already "running" without ever having been picked by schedule(), so
	// unlike runForked it does not wait on its resume channel before
	// spinning — it just yields forever, giving every other task first
	// claim on the CPU (§4.4: idle is priority 11, always numerically
	// last).
	go func() {
		for {
			k.Yield(idle)
		}
	}()

	return idle
}

func (k *Kernel) allocPid() defs.Pid_t {
	k.nextPid++
	return defs.Pid_t(k.nextPid - 1)
}

func (k *Kernel) allocSemID() defs.SemId_t {
	k.nextSem++
	return defs.SemId_t(k.nextSem)
}

func (k *Kernel) allocPipeID() defs.PipeId_t {
	k.nextPipe++
	return defs.PipeId_t(k.nextPipe)
}

// Current returns the currently running task.
func (k *Kernel) Current() *Task {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

// Lock/Unlock expose the kernel lock to code outside this package. The
// Kernel methods internal/syscall's dispatcher calls take the lock
// themselves; the dispatcher does not call Lock.
func (k *Kernel) Lock()   { k.mu.Lock() }
func (k *Kernel) Unlock() { k.mu.Unlock() }
