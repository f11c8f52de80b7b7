package sched

import (
	"github.com/Alec-Sobeck/Operating-System/internal/defs"
	"github.com/Alec-Sobeck/Operating-System/internal/ipc"
)

// SemOpen implements §4.7's open: n must be non-negative. Returns the new
// semaphore's id, or 0 if n is invalid.
func (k *Kernel) SemOpen(self *Task, n int) defs.SemId_t {
	if n < 0 {
		return 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.Limits.MaxSemaphores.Take() {
		return 0
	}
	id := k.allocSemID()
	k.sems.Set(id, ipc.NewSemaphore(id, n))
	self.SemIDs = append(self.SemIDs, id)
	return id
}

// SemWait implements §4.7's wait. Returns 0 if the caller doesn't own id, or
// if the semaphore was closed out from under a blocked waiter; otherwise id.
func (k *Kernel) SemWait(self *Task, id defs.SemId_t) defs.SemId_t {
	k.mu.Lock()
	if !self.ownsSem(id) {
		k.mu.Unlock()
		return 0
	}
	s, ok := k.sems.Get(id)
	if !ok {
		k.mu.Unlock()
		return 0
	}
	if blocked := s.Wait(self.ID); blocked {
		self.State = Waiting
		k.schedule(self, false, true, false)
		// on resume, the semaphore may have been closed while we waited.
		if _, stillThere := k.sems.Get(id); !stillThere {
			k.mu.Unlock()
			return 0
		}
	}
	k.mu.Unlock()
	return id
}

// SemSignal implements §4.7's signal.
func (k *Kernel) SemSignal(self *Task, id defs.SemId_t) defs.SemId_t {
	k.mu.Lock()
	if !self.ownsSem(id) {
		k.mu.Unlock()
		return 0
	}
	s, ok := k.sems.Get(id)
	if !ok {
		k.mu.Unlock()
		return 0
	}
	woken, didWake := s.Signal()
	if didWake {
		if t, ok := k.tasks.Get(woken); ok {
			t.State = Ready
			k.ready = append(k.ready, t)
		}
	}
	// the signaler offers itself back up for re-scheduling so a newly
	// woken higher-priority task can run immediately.
	k.schedule(self, true, true, false)
	k.mu.Unlock()
	return id
}

// SemClose implements §4.7's close: removes the semaphore from the table
// unconditionally (regardless of how many tasks still hold it via
// inheritance) and wakes every waiter, who will observe it gone and return
// 0. Refcounting only governs the implicit close a task's own exit performs
// on the semaphores it still owns (see decrementSemRefLocked), not an
// explicit close call.
func (k *Kernel) SemClose(self *Task, id defs.SemId_t) defs.SemId_t {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !self.ownsSem(id) {
		return 0
	}
	self.SemIDs = removeSemID(self.SemIDs, id)
	k.forceCloseSemLocked(id)
	return id
}

// forceCloseSemLocked unconditionally removes id from the table and wakes
// every blocked waiter. Safe to call on an id already removed (a no-op),
// matching the "closing a resource twice" silent stratum in §7.
func (k *Kernel) forceCloseSemLocked(id defs.SemId_t) {
	s, ok := k.sems.Get(id)
	if !ok {
		return
	}
	k.sems.Del(id)
	k.Limits.MaxSemaphores.Give()
	for _, pid := range s.DrainWaiters() {
		if t, ok := k.tasks.Get(pid); ok {
			t.State = Ready
			k.ready = append(k.ready, t)
		}
	}
}

// decrementSemRefLocked drops one reference from id's semaphore, destroying
// it (and waking any remaining waiters) only once the refcount reaches
// zero. This is the exit-time path: a task that dies while still holding a
// semaphore it inherited via fork releases just its own share, leaving the
// semaphore live for whichever other task still owns it.
func (k *Kernel) decrementSemRefLocked(id defs.SemId_t) {
	s, ok := k.sems.Get(id)
	if !ok {
		return
	}
	s.Refcount--
	if s.Refcount > 0 {
		return
	}
	k.forceCloseSemLocked(id)
}
