//go:build linux

package sandbox

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// seccompSetFilter issues the seccomp(2) syscall directly: x/sys/unix
// does not wrap SECCOMP_SET_MODE_FILTER itself, only the older
// prctl(PR_SET_SECCOMP) path, which cannot request SECCOMP_FILTER_FLAG_LOG.
func seccompSetFilter(fprog *unix.SockFprog) error {
	const seccompFilterFlagTSync = 1 // SECCOMP_FILTER_FLAG_TSYNC: filter every thread
	_, _, errno := unix.Syscall(unix.SYS_SECCOMP, seccompSetModeFilter, seccompFilterFlagTSync, uintptr(unsafe.Pointer(fprog)))
	if errno != 0 {
		return errno
	}
	return nil
}
