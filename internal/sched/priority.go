package sched

import "github.com/Alec-Sobeck/Operating-System/internal/defs"

// SetPriority implements §6's setpriority: looking pid up by task table,
// with three distinct outcomes matching the original kernel_ken semantics —
// unknown pid returns 0; a pid naming a task other than the caller is a
// read-only probe that returns its current priority unchanged; a pid naming
// the caller itself resets both the current and initial priority (and clears
// the aging counter) to newPriority, which must be in [PriorityMax,
// PriorityMin], returning it, or 0 if out of range.
func (k *Kernel) SetPriority(self *Task, pid defs.Pid_t, newPriority int) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	target, ok := k.tasks.Get(pid)
	if !ok {
		return 0
	}
	if target.ID != self.ID {
		return target.Priority
	}
	if newPriority < PriorityMax || newPriority > PriorityMin {
		return 0
	}
	target.Priority = newPriority
	target.InitPriority = newPriority
	target.AgeCounter = 0
	return newPriority
}
