package sched

import (
	"runtime"

	"github.com/Alec-Sobeck/Operating-System/internal/defs"
)

// Exit implements §4.6. It never returns: after handing off the CPU it ends
// the calling goroutine. Calling Exit on a task that is already terminating
// is a silent no-op (the "closing a resource twice" error stratum, §7)
// rather than a panic.
func (k *Kernel) Exit(self *Task) {
	k.mu.Lock()

	if self.State == Terminating {
		k.mu.Unlock()
		return
	}
	teardownStart := self.Accnt.Now()
	self.State = Terminating
	k.tasks.Del(self.ID)
	k.removeFromSleeping(self.ID)
	k.Limits.MaxTasks.Give()

	// free owned semaphores/pipes, decrementing refcounts and destroying at
	// zero.
	for _, sid := range self.SemIDs {
		k.decrementSemRefLocked(sid)
	}
	for _, pid := range self.PipeIDs {
		k.decrementPipeRefLocked(pid)
	}
	self.Heap = nil
	self.AS.Destroy()
	self.Accnt.Finish(teardownStart)

	// wake every joiner, folding the exited task's accounting into each —
	// the reap step absorbing a child's resource usage into its parent.
	for _, jpid := range self.Joiners {
		if j, ok := k.tasks.Get(jpid); ok {
			j.Accnt.Add(self.Accnt)
			j.State = Ready
			k.ready = append(k.ready, j)
		}
	}
	self.Joiners = nil

	// control never returns: schedule(..., alive=false, ...) releases k.mu
	// itself and hands the CPU to whoever is picked next.
	k.schedule(self, false, false, false)
	runtime.Goexit()
}

func (k *Kernel) removeFromSleeping(pid defs.Pid_t) {
	for i, t := range k.sleeping {
		if t.ID == pid {
			k.sleeping = append(k.sleeping[:i], k.sleeping[i+1:]...)
			return
		}
	}
}

// Join implements §4.6's companion operation: park the caller until pid
// exits. Returns -1 immediately if pid names no live task.
func (k *Kernel) Join(self *Task, pid defs.Pid_t) int {
	k.mu.Lock()
	target, ok := k.tasks.Get(pid)
	if !ok {
		k.mu.Unlock()
		return -1
	}
	target.Joiners = append(target.Joiners, self.ID)
	self.State = Waiting
	k.schedule(self, false, true, false)
	k.mu.Unlock()
	return 0
}
