// Package defs holds the error taxonomy and small id types shared by every
// other kernel package. It plays the same role as biscuit's defs package: a
// leaf package that everything else imports and that imports nothing
// kernel-specific itself.
package defs

// Err_t is the signed sentinel returned by syscall handlers. Zero means
// success; negative values name a specific failure. Handlers never use Go's
// error interface for these — matching biscuit's convention of plain
// integer error codes flowing all the way out to the syscall return
// register.
type Err_t int

// Sentinel error codes. Values are negated at call sites (-defs.EFAULT),
// matching biscuit's convention in vm/as.go.
const (
	EFAULT        Err_t = 1
	ENOMEM        Err_t = 2
	ENOHEAP       Err_t = 3
	EINVAL        Err_t = 4
	ENAMETOOLONG  Err_t = 5
	ESRCH         Err_t = 6
	EEXIST        Err_t = 7
)

// Pid_t identifies a task (process). Monotonically increasing, never reused.
type Pid_t int

// SemId_t identifies a semaphore.
type SemId_t int

// PipeId_t identifies a pipe.
type PipeId_t int

// Tid_t identifies a thread of control within a task. This core is
// single-threaded per task, so Tid_t and Pid_t coincide, but the type is
// kept distinct so call sites document their intent the way biscuit's
// vm/as.go (defs.Tid_t) does.
type Tid_t int
