// Package ipc implements the data-structure half of the counting semaphores
// and ring-buffer pipes described in §4.7 and §4.8: a Semaphore's FIFO
// queue holds blocked *pids*, not blocking primitives of its own, and a
// Pipe is a plain non-blocking ring buffer. Neither type takes its own
// lock — per §5, mutual exclusion is by the kernel's single non-preemptible
// trap-handling lock, held by whatever package in internal/sched/internal/
// kernel drives these through a syscall. The ring-buffer mechanics are
// grounded on biscuit's circbuf.go, stripped of its single-daemon
// lazy-page-allocation machinery (this heap-less pipe just owns a Go slice)
// since physical-frame accounting for pipe buffers has no observable role
// here.
package ipc

import "github.com/Alec-Sobeck/Operating-System/internal/defs"

// Semaphore is a counting semaphore whose wait queue is a FIFO list of
// blocked task ids. Waiters is non-empty only when Count is negative, and
// then (until DrainWaiters) holds exactly -Count pids, so Count plus the
// length of Waiters never drops below zero. That sum falls by one for each
// Wait that does not block and rises by one for each Signal that finds no
// waiter, so it can fall below the initial value.
type Semaphore struct {
	ID       defs.SemId_t
	Count    int
	Waiters  []defs.Pid_t
	Refcount int
}

// NewSemaphore creates a semaphore with the given id and initial count, one
// open reference.
func NewSemaphore(id defs.SemId_t, n int) *Semaphore {
	return &Semaphore{ID: id, Count: n, Refcount: 1}
}

// Signal increments the counter. If a task was waiting, its pid is popped
// off the front of the queue and returned so the caller can move it from
// Waiting back to Ready.
func (s *Semaphore) Signal() (defs.Pid_t, bool) {
	s.Count++
	if len(s.Waiters) == 0 {
		return 0, false
	}
	pid := s.Waiters[0]
	s.Waiters = s.Waiters[1:]
	return pid, true
}

// Wait decrements the counter and reports whether pid must block (in which
// case pid has already been appended to the wait queue).
func (s *Semaphore) Wait(pid defs.Pid_t) bool {
	s.Count--
	if s.Count < 0 {
		s.Waiters = append(s.Waiters, pid)
		return true
	}
	return false
}

// DrainWaiters empties and returns the wait queue without adjusting Count;
// used when a semaphore is closed out from under its waiters (§4.7's close).
func (s *Semaphore) DrainWaiters() []defs.Pid_t {
	w := s.Waiters
	s.Waiters = nil
	return w
}
