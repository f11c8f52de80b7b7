package sched

import "github.com/Alec-Sobeck/Operating-System/internal/defs"

// TaskSnapshot is a point-in-time, read-only view of one task, used by
// diagnostic/profiling tooling that must not hold the kernel lock any
// longer than it takes to copy a few fields out.
type TaskSnapshot struct {
	Pid       int
	Priority  int
	State     TaskState
	HeapPages int64
}

// Snapshot returns one TaskSnapshot per live task, in no particular order.
func (k *Kernel) Snapshot() []TaskSnapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	var out []TaskSnapshot
	k.tasks.Each(func(_ defs.Pid_t, t *Task) bool {
		pages := int64(0)
		if t.Heap != nil {
			pages = t.Heap.Pages()
		}
		out = append(out, TaskSnapshot{
			Pid:       int(t.ID),
			Priority:  t.Priority,
			State:     t.State,
			HeapPages: pages,
		})
		return true
	})
	return out
}
