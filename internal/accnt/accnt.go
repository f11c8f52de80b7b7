// Package accnt tracks per-task CPU accounting: nanoseconds spent in user
// mode versus kernel mode, exposed so a parent can fold a reaped child's
// usage into its own (per §4.6's join/reap step). Adapted directly from
// biscuit's accnt.go; Fetch/To_rusage's wire-format serialization is
// dropped since this kernel has no syscall-level rusage struct to populate
// — join only needs the in-process accumulation.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Accnt accumulates one task's CPU time.
type Accnt struct {
	mu sync.Mutex

	Userns int64
	Sysns  int64
}

// Utadd adds delta nanoseconds of user-mode time.
func (a *Accnt) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds of system-mode time.
func (a *Accnt) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// Now returns the current wall-clock time in nanoseconds.
func (a *Accnt) Now() int64 {
	return time.Now().UnixNano()
}

// Finish folds the system time elapsed since startedAt into Sysns.
func (a *Accnt) Finish(startedAt int64) {
	a.Systadd(a.Now() - startedAt)
}

// Add merges another task's accounting record into this one — used when a
// parent reaps a child and absorbs its resource usage.
func (a *Accnt) Add(n *Accnt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Userns += atomic.LoadInt64(&n.Userns)
	a.Sysns += atomic.LoadInt64(&n.Sysns)
}

// Snapshot returns a consistent point-in-time copy of the counters.
func (a *Accnt) Snapshot() (userns, sysns int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Userns, a.Sysns
}
