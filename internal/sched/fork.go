package sched

import "github.com/Alec-Sobeck/Operating-System/internal/defs"

// Fork implements §4.5. body is the child's continuation — the hosted
// stand-in for "fork returns twice": instead of one function observing two
// different return values depending on which task it's running as, the
// child's future execution is named explicitly as a closure, spawned on its
// own goroutine, and the parent simply gets the new pid back synchronously.
// Returns -1 without touching any other state if the system-wide task
// limit is exhausted.
func (k *Kernel) Fork(parent *Task, body func(k *Kernel, self *Task)) defs.Pid_t {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.Limits.MaxTasks.Take() {
		return -1
	}

	childAS := parent.AS.Clone()       // step 1: directory clone
	childHeap := parent.Heap.Clone(childAS) // step 4: heap metadata deep-copy

	pid := k.allocPid() // step 2

	prio, initPrio := parent.Priority, parent.InitPriority
	if parent.ID == IdlePid {
		// step 5: the idle task's priority is never inherited.
		prio, initPrio = PriorityDefault, PriorityDefault
	}

	child := newTask(pid, childAS, childHeap, prio, body)
	child.InitPriority = initPrio

	// step 6: inherit owned semaphores/pipes by reference count.
	for _, sid := range parent.SemIDs {
		if s, ok := k.sems.Get(sid); ok {
			s.Refcount++
			child.SemIDs = append(child.SemIDs, sid)
		}
	}
	for _, pipeID := range parent.PipeIDs {
		if p, ok := k.pipes.Get(pipeID); ok {
			p.Refcount++
			child.PipeIDs = append(child.PipeIDs, pipeID)
		}
	}

	k.tasks.Set(pid, child)
	child.State = Ready
	k.ready = append(k.ready, child) // step 7

	go k.runForked(child)

	return pid // step 8 (the parent's half; the child sees 0 via its own
	// call into body, which never receives a "return value" at all — it is
	// simply invoked with argument 0 semantics implicit in being the child)
}

// runForked is the goroutine body for every non-idle task: park until first
// scheduled, run the task's user-level function, then fall through to an
// implicit exit if the function returns without calling Exit itself.
func (k *Kernel) runForked(t *Task) {
	<-t.resume
	if t.body != nil {
		t.body(k, t)
	}
	k.Exit(t)
}
