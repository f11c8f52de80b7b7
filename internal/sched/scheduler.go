package sched

import "github.com/Alec-Sobeck/Operating-System/internal/kutil"

// schedule implements §4.4. The caller must hold k.mu. addCurrent decides
// whether self goes back on the ready queue; alive is false only on the
// exit path (the task's memory has already been torn down, so its
// registers — here, its goroutine — must never be resumed or re-enqueued);
// tick marks a timer-driven invocation, which also runs the sleep-queue
// pass.
//
// schedule only returns once self has been chosen to run again (or
// immediately, if self was re-picked without ever losing the CPU). If alive
// is false, schedule does not return at all from the caller's perspective:
// the exiting goroutine is expected to stop running code of its own after
// calling it.
func (k *Kernel) schedule(self *Task, addCurrent, alive, tick bool) {
	if tick {
		k.tickSleepers()
	}

	k.ageReady()
	k.accountRunTime(self)

	if addCurrent && alive {
		self.State = Ready
		k.ready = append(k.ready, self)
	}

	next := k.pickNext()
	next.Priority = next.InitPriority
	next.AgeCounter = 0
	next.State = Running
	k.current = next
	next.AS.Activate(k.activator)
	next.ranAt = next.Accnt.Now()

	if next == self {
		return
	}

	k.wake(next)

	if !alive {
		// self's goroutine is unwinding for good. Unlike every other path,
		// this call does NOT return with k.mu held — there is no "later" in
		// which the exiting goroutine could release it. Callers passing
		// alive=false must treat this call as the last thing they ever do
		// with the kernel lock.
		k.mu.Unlock()
		return
	}

	k.mu.Unlock()
	<-self.resume
	k.mu.Lock()
}

// accountRunTime folds the time self spent running since it was last
// switched onto the CPU into its accounting record, per §4's "per-task
// accounting" addition. A task that has never run (ranAt still zero, e.g.
// idle before its first tick) contributes nothing.
func (k *Kernel) accountRunTime(self *Task) {
	if self.ranAt == 0 {
		return
	}
	if elapsed := self.Accnt.Now() - self.ranAt; elapsed > 0 {
		self.Accnt.Utadd(elapsed)
	}
	self.ranAt = 0
}

// wake hands the CPU to t by signalling its resume channel. The channel is
// buffered (capacity 1) so this never blocks even if t hasn't parked yet.
func (k *Kernel) wake(t *Task) {
	select {
	case t.resume <- struct{}{}:
	default:
	}
}

// ageReady applies §4.4's aging rule to every task currently on the ready
// queue. The idle task is immune.
func (k *Kernel) ageReady() {
	for _, t := range k.ready {
		if t.ID == IdlePid {
			continue
		}
		t.AgeCounter++
		if t.AgeCounter >= TimeSlicePerAge {
			if t.Priority > PriorityMax {
				t.Priority--
			}
			t.AgeCounter = 0
		}
	}
}

// pickNext removes and returns the ready task with the numerically smallest
// priority, breaking ties in favor of the earliest-arrived (first match in
// arrival order, since k.ready preserves enqueue order).
func (k *Kernel) pickNext() *Task {
	best := 0
	for i := 1; i < len(k.ready); i++ {
		if k.ready[i].Priority < k.ready[best].Priority {
			best = i
		}
	}
	t := k.ready[best]
	k.ready = append(k.ready[:best], k.ready[best+1:]...)
	return t
}

// tickSleepers decrements every sleeping task's remaining tick count,
// moving any that reach zero back onto the ready queue.
func (k *Kernel) tickSleepers() {
	var still []*Task
	for _, t := range k.sleeping {
		t.SleepTicks = kutil.Max(t.SleepTicks-1, 0)
		if t.SleepTicks == 0 {
			t.State = Ready
			k.ready = append(k.ready, t)
		} else {
			still = append(still, t)
		}
	}
	k.sleeping = still
}

// Tick is the external timer entry point (the HAL's periodic tick collaborator
// from §1's scope). It preempts whoever is running.
func (k *Kernel) Tick() {
	k.mu.Lock()
	cur := k.current
	k.schedule(cur, true, true, true)
	k.mu.Unlock()
}

// Yield voluntarily gives up the CPU without going to sleep or blocking on
// anything.
func (k *Kernel) Yield(self *Task) {
	k.mu.Lock()
	k.schedule(self, true, true, false)
	k.mu.Unlock()
}

// SleepTicksFor parks self on the sleep queue for n ticks.
func (k *Kernel) SleepTicksFor(self *Task, n int) {
	k.mu.Lock()
	self.SleepTicks = n
	self.State = Waiting
	k.sleeping = append(k.sleeping, self)
	k.schedule(self, false, true, false)
	k.mu.Unlock()
}
