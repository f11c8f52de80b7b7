//go:build linux

package kernel

import "golang.org/x/sys/unix"

// HostThreadID annotates diagnostic output with the OS thread currently
// backing the calling goroutine, when running on Linux. A task's goroutine
// can migrate between OS threads between calls, so this is advisory only —
// useful for correlating a captured profile with `perf`/`strace` output
// against the host process, never for anything load-bearing inside the
// kernel itself.
func HostThreadID() int {
	return unix.Gettid()
}
