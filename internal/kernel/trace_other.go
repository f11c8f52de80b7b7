//go:build !linux

package kernel

// HostThreadID is a no-op outside Linux; there is no portable "thread id"
// concept this module depends on, so non-Linux hosts simply don't get the
// annotation.
func HostThreadID() int {
	return 0
}
