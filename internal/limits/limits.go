// Package limits implements the system-wide resource ceilings referenced
// throughout §4 (max tasks, semaphores, pipes, heap pages): atomically
// updated counters that fork/semget/pipe fail against once exhausted.
// Adapted from biscuit's limits.go, dropping the device-specific limits
// (vnodes, futexes, ARP entries, routes, TCP segments, block pages) that
// have no counterpart in this spec and keeping the Sysatomic_t pattern.
package limits

import "sync/atomic"

// Sysatomic is a numeric limit that can be atomically given back and taken
// from; Taken reports whether the decrement would have gone negative and,
// if so, refunds it instead of applying it.
type Sysatomic struct {
	n int64
}

func NewSysatomic(initial int64) *Sysatomic {
	return &Sysatomic{n: initial}
}

// Given increases the limit by n.
func (s *Sysatomic) Given(n uint) {
	atomic.AddInt64(&s.n, int64(n))
}

// Taken tries to decrement the limit by n, refunding and returning false if
// doing so would drive it negative.
func (s *Sysatomic) Taken(n uint) bool {
	if atomic.AddInt64(&s.n, -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64(&s.n, int64(n))
	return false
}

// Take decrements the limit by one.
func (s *Sysatomic) Take() bool { return s.Taken(1) }

// Give increments the limit by one.
func (s *Sysatomic) Give() { s.Given(1) }

// Remaining returns a point-in-time snapshot of the limit's current value.
func (s *Sysatomic) Remaining() int64 { return atomic.LoadInt64(&s.n) }

// Sys holds the configured system-wide limits. Every field is a Sysatomic
// so every subsystem that owns a bounded resource debits the same counter
// concurrently, matching biscuit's Syslimit_t / Sysatomic_t split between
// int (protected by some other lock) and atomically-updated counts.
type Sys struct {
	MaxTasks      *Sysatomic
	MaxSemaphores *Sysatomic
	MaxPipes      *Sysatomic
	MaxHeapPages  *Sysatomic
}

// Default returns the limit set this kernel boots with.
func Default() *Sys {
	return &Sys{
		MaxTasks:      NewSysatomic(8192),
		MaxSemaphores: NewSysatomic(4096),
		MaxPipes:      NewSysatomic(4096),
		MaxHeapPages:  NewSysatomic(1 << 20),
	}
}
