package sched

import (
	"testing"
	"time"

	"github.com/Alec-Sobeck/Operating-System/internal/defs"
	"github.com/Alec-Sobeck/Operating-System/internal/limits"
)

func newTestKernel(t *testing.T) (*Kernel, *Task) {
	t.Helper()
	k := New(4096)
	idle := k.Bootstrap()
	return k, idle
}

func TestBootstrapPinsIdleToReservedPid(t *testing.T) {
	k, idle := newTestKernel(t)
	if idle.ID != IdlePid {
		t.Fatalf("expected idle pid %d, got %d", IdlePid, idle.ID)
	}
	if idle.Priority != PriorityIdle {
		t.Fatalf("expected idle priority %d, got %d", PriorityIdle, idle.Priority)
	}
	_ = k
}

func TestForkedChildRuns(t *testing.T) {
	k, idle := newTestKernel(t)
	done := make(chan defs.Pid_t, 1)
	k.Fork(idle, func(k *Kernel, self *Task) {
		done <- self.ID
	})
	select {
	case pid := <-done:
		if pid == IdlePid {
			t.Fatal("child ran with the idle task's pid")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forked child never ran")
	}
}

func TestForkHeapIsolation(t *testing.T) {
	k, idle := newTestKernel(t)
	ptr := idle.Heap.Alloc(64, false)
	idle.AS.WriteBytes(ptr, []byte{1, 2, 3, 4})

	results := make(chan []byte, 1)
	k.Fork(idle, func(k *Kernel, self *Task) {
		got, _ := self.AS.ReadBytes(ptr, 4)
		// overwrite the child's copy; must not be visible to the parent.
		self.AS.WriteBytes(ptr, []byte{9, 9, 9, 9})
		results <- got
	})

	var childSaw []byte
	select {
	case childSaw = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("forked child never ran")
	}
	if string(childSaw) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("child did not inherit parent's heap contents: %v", childSaw)
	}

	time.Sleep(50 * time.Millisecond) // let the child's write actually land
	parentView, _ := idle.AS.ReadBytes(ptr, 4)
	if string(parentView) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("child's write leaked into parent's address space: %v", parentView)
	}
}

func TestJoinWakesAfterChildExits(t *testing.T) {
	k, idle := newTestKernel(t)

	// The child is gated behind a semaphore it inherits from idle, so it
	// provably cannot reach Exit until the test signals it — which removes
	// the race between "child already exited" and "joiner registered" that
	// two freely-scheduled goroutines would otherwise have.
	gate := k.SemOpen(idle, 0)
	childPid := k.Fork(idle, func(k *Kernel, self *Task) {
		k.SemWait(self, gate)
	})

	joinResult := make(chan int, 1)
	k.Fork(idle, func(k *Kernel, self *Task) {
		joinResult <- k.Join(self, childPid)
	})

	time.Sleep(100 * time.Millisecond) // let both forked tasks start and park
	k.Fork(idle, func(k *Kernel, self *Task) {
		k.SemSignal(self, gate)
	})

	select {
	case r := <-joinResult:
		if r != 0 {
			t.Fatalf("expected join to return 0, got %d", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join on an exited child never returned")
	}
}

func TestJoinOnUnknownPidReturnsMinusOne(t *testing.T) {
	k, idle := newTestKernel(t)
	result := make(chan int, 1)
	k.Fork(idle, func(k *Kernel, self *Task) {
		result <- k.Join(self, defs.Pid_t(99999))
	})
	select {
	case r := <-result:
		if r != -1 {
			t.Fatalf("expected -1 for unknown pid, got %d", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join never returned")
	}
}

func TestSemaphoreSignalWakesWaitingTask(t *testing.T) {
	k, idle := newTestKernel(t)
	semID := k.SemOpen(idle, 0)

	waiterDone := make(chan defs.SemId_t, 1)
	k.Fork(idle, func(k *Kernel, self *Task) {
		waiterDone <- k.SemWait(self, semID)
	})

	time.Sleep(50 * time.Millisecond)
	// SemSignal always re-enters the scheduler, so it must run on a task's
	// own goroutine rather than being called against idle from the test.
	k.Fork(idle, func(k *Kernel, self *Task) {
		k.SemSignal(self, semID)
	})

	select {
	case got := <-waiterDone:
		if got != semID {
			t.Fatalf("expected sem id %d back from Wait, got %d", semID, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("semaphore signal never woke the waiter")
	}
}

func TestSemaphoreCloseWakesWaiterWithZero(t *testing.T) {
	k, idle := newTestKernel(t)
	semID := k.SemOpen(idle, 0)

	waiterDone := make(chan defs.SemId_t, 1)
	k.Fork(idle, func(k *Kernel, self *Task) {
		waiterDone <- k.SemWait(self, semID)
	})

	time.Sleep(50 * time.Millisecond)
	k.SemClose(idle, semID)

	select {
	case got := <-waiterDone:
		if got != 0 {
			t.Fatalf("expected 0 after close released the waiter, got %d", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("semaphore close never released the waiter")
	}
}

func TestPipeOpenWriteReadThroughKernel(t *testing.T) {
	k, idle := newTestKernel(t)
	id := k.PipeOpen(idle)
	n := k.PipeWrite(idle, id, []byte("hi"))
	if n != 2 {
		t.Fatalf("expected 2 bytes written, got %d", n)
	}
	buf := make([]byte, 2)
	n = k.PipeRead(idle, id, buf)
	if n != 2 || string(buf) != "hi" {
		t.Fatalf("n=%d buf=%q", n, buf)
	}
}

func TestForkFailsOnceTaskLimitExhausted(t *testing.T) {
	k, idle := newTestKernel(t)
	k.Limits.MaxTasks = limits.NewSysatomic(0)

	if pid := k.Fork(idle, func(k *Kernel, self *Task) {}); pid != -1 {
		t.Fatalf("expected -1 when the task limit is exhausted, got %d", pid)
	}
}

func TestSemOpenFailsOnceSemaphoreLimitExhausted(t *testing.T) {
	k, idle := newTestKernel(t)
	k.Limits.MaxSemaphores = limits.NewSysatomic(0)

	if id := k.SemOpen(idle, 0); id != 0 {
		t.Fatalf("expected 0 when the semaphore limit is exhausted, got %d", id)
	}
}

func TestPipeOpenFailsOnceLimitExhausted(t *testing.T) {
	k, idle := newTestKernel(t)
	k.Limits.MaxPipes = limits.NewSysatomic(0)

	if id := k.PipeOpen(idle); id != -1 {
		t.Fatalf("expected -1 when the pipe limit is exhausted, got %d", id)
	}
}

func TestJoinFoldsChildAccountingIntoParent(t *testing.T) {
	k, idle := newTestKernel(t)

	childDone := make(chan defs.Pid_t, 1)
	joinResult := make(chan int, 1)
	parentNs := make(chan int64, 1)
	k.Fork(idle, func(k *Kernel, parent *Task) {
		// Fork does not yield, so the child cannot run (and exit) before
		// the parent has registered as its joiner below.
		pid := k.Fork(parent, func(k *Kernel, self *Task) {
			self.Accnt.Utadd(int64(time.Hour))
			childDone <- self.ID
		})
		joinResult <- k.Join(parent, pid)
		userns, _ := parent.Accnt.Snapshot()
		parentNs <- userns
	})

	select {
	case <-childDone:
	case <-time.After(2 * time.Second):
		t.Fatal("child never ran")
	}
	select {
	case r := <-joinResult:
		if r != 0 {
			t.Fatalf("expected Join to return 0, got %d", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join never completed")
	}

	userns := <-parentNs
	if userns < int64(time.Hour) {
		t.Fatalf("expected the child's accounting folded into the parent's, got %d user ns", userns)
	}
}

func TestPipeOperationsFailForNonOwner(t *testing.T) {
	k, idle := newTestKernel(t)
	id := k.PipeOpen(idle)

	result := make(chan int, 1)
	k.Fork(idle, func(k *Kernel, self *Task) {
		// drop the pipe the child inherited through Fork, so it no longer
		// owns it.
		self.PipeIDs = nil
		result <- k.PipeWrite(self, id, []byte("x"))
	})
	select {
	case r := <-result:
		if r != -1 {
			t.Fatalf("expected -1 for a non-owned pipe, got %d", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipe write from non-owner never returned")
	}
}
