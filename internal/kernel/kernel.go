// Package kernel is the composition root: it owns one internal/sched.Kernel
// and one internal/syscall.Dispatcher, and wires in the HAL ports a host
// embedder supplies (§1's "external collaborators" — a tick source, an
// address-space-activation sink, and a character sink). Nothing in
// internal/sched or internal/syscall knows this package exists; Kernel
// exists purely to hand a caller one value to construct instead of three.
package kernel

import (
	"github.com/google/pprof/profile"

	"github.com/Alec-Sobeck/Operating-System/internal/diag"
	"github.com/Alec-Sobeck/Operating-System/internal/paging"
	"github.com/Alec-Sobeck/Operating-System/internal/sched"
	"github.com/Alec-Sobeck/Operating-System/internal/syscall"
)

// TickSource is the HAL port driving preemption: a host embedder calls Tick
// on whatever cadence its real or simulated timer interrupt fires (§6's
// TIME_QUANTUM). There is no default implementation here — tests drive
// Tick directly, and a bare-metal or emulator host would wire its own timer
// IRQ handler to call it.
type TickSource interface {
	Tick()
}

// Kernel is the single value a host program needs to hold. It is safe for
// concurrent use: every exported method either delegates straight to
// Sched (already single-lock-protected) or to Dispatch.
type Kernel struct {
	Sched    *sched.Kernel
	Dispatch *syscall.Dispatcher
}

// New constructs a Kernel over nframes physical frames, wiring console and
// display as the ports backing the text/colour syscalls. Either may be nil
// if the host never exercises the corresponding calls; activator may also
// be nil if the host has no notion of switching address spaces (e.g. a
// pure unit test).
func New(nframes uint32, console syscall.Console, display syscall.Display, activator paging.Activator) *Kernel {
	sk := sched.New(nframes)
	sk.SetActivator(activator)
	return &Kernel{
		Sched:    sk,
		Dispatch: syscall.New(sk, console, display),
	}
}

// Bootstrap creates the idle task and must be called exactly once before
// any Trap. It returns the idle task purely for tests that want to assert
// against it directly; ordinary callers can discard the result.
func (k *Kernel) Bootstrap() *sched.Task {
	return k.Sched.Bootstrap()
}

// Tick satisfies TickSource, letting a host register Kernel itself with its
// own timer-interrupt plumbing.
func (k *Kernel) Tick() {
	k.Sched.Tick()
}

// CaptureProfile snapshots every live task's heap occupancy into a pprof
// profile — a memory-occupancy counterpart to a CPU profile, annotated
// with the OS thread the capture ran on wherever that's known (Linux).
// The profiling surface itself has no direct biscuit equivalent (biscuit's
// D_PROF samples the CPU, not heap pages); it builds on the same
// github.com/google/pprof/profile type biscuit already depends on.
func (k *Kernel) CaptureProfile() *profile.Profile {
	snap := k.Sched.Snapshot()
	occ := make([]diag.Occupancy, len(snap))
	for i, s := range snap {
		occ[i] = diag.Occupancy{Pid: s.Pid, Pages: s.HeapPages}
	}
	return diag.CaptureProfile(occ, HostThreadID())
}

// Trap is the hosted equivalent of the 0x80 gate from §4.9: a task
// (self) traps into the kernel with a call number and argument bundle, and
// gets back whatever that call returns.
func (k *Kernel) Trap(self *sched.Task, num int, args syscall.Args) int64 {
	return k.Dispatch.Dispatch(self, num, args)
}
