//go:build linux && arm64

package sandbox

import "golang.org/x/sys/unix"

// syscallNumbers mirrors syscalls_linux_amd64.go for linux/arm64, which
// has no legacy socketcall/open/access/stat/creat/poll/pipe/dup2 family:
// those names are simply omitted here and excluded from the compiled
// filter on this architecture.
var syscallNumbers = map[string]uint32{
	"brk":               unix.SYS_BRK,
	"capget":            unix.SYS_CAPGET,
	"capset":            unix.SYS_CAPSET,
	"chdir":             unix.SYS_CHDIR,
	"clock_getres":      unix.SYS_CLOCK_GETRES,
	"clock_gettime":     unix.SYS_CLOCK_GETTIME,
	"clone":             unix.SYS_CLONE,
	"clone3":            unix.SYS_CLONE3,
	"close":             unix.SYS_CLOSE,
	"connect":           unix.SYS_CONNECT,
	"dup":               unix.SYS_DUP,
	"epoll_create1":     unix.SYS_EPOLL_CREATE1,
	"epoll_ctl":         unix.SYS_EPOLL_CTL,
	"epoll_pwait":       unix.SYS_EPOLL_PWAIT,
	"eventfd2":          unix.SYS_EVENTFD2,
	"execve":            unix.SYS_EXECVE,
	"exit":              unix.SYS_EXIT,
	"exit_group":        unix.SYS_EXIT_GROUP,
	"faccessat":         unix.SYS_FACCESSAT,
	"fadvise64":         unix.SYS_FADVISE64,
	"fchdir":            unix.SYS_FCHDIR,
	"fcntl":             unix.SYS_FCNTL,
	"fstat":             unix.SYS_FSTAT,
	"fstatfs":           unix.SYS_FSTATFS,
	"ftruncate":         unix.SYS_FTRUNCATE,
	"futex":             unix.SYS_FUTEX,
	"get_mempolicy":     unix.SYS_GET_MEMPOLICY,
	"getcwd":            unix.SYS_GETCWD,
	"getdents64":        unix.SYS_GETDENTS64,
	"getegid":           unix.SYS_GETEGID,
	"geteuid":           unix.SYS_GETEUID,
	"getgid":            unix.SYS_GETGID,
	"getpid":            unix.SYS_GETPID,
	"getppid":           unix.SYS_GETPPID,
	"getrandom":         unix.SYS_GETRANDOM,
	"gettid":            unix.SYS_GETTID,
	"gettimeofday":      unix.SYS_GETTIMEOFDAY,
	"getuid":            unix.SYS_GETUID,
	"ioctl":             unix.SYS_IOCTL,
	"madvise":           unix.SYS_MADVISE,
	"membarrier":        unix.SYS_MEMBARRIER,
	"memfd_create":      unix.SYS_MEMFD_CREATE,
	"mmap":              unix.SYS_MMAP,
	"mprotect":          unix.SYS_MPROTECT,
	"mremap":            unix.SYS_MREMAP,
	"munmap":            unix.SYS_MUNMAP,
	"newfstatat":        unix.SYS_NEWFSTATAT,
	"openat":            unix.SYS_OPENAT,
	"pipe2":             unix.SYS_PIPE2,
	"pivot_root":        unix.SYS_PIVOT_ROOT,
	"ppoll":             unix.SYS_PPOLL,
	"prctl":             unix.SYS_PRCTL,
	"pread64":           unix.SYS_PREAD64,
	"prlimit64":         unix.SYS_PRLIMIT64,
	"read":              unix.SYS_READ,
	"readlinkat":        unix.SYS_READLINKAT,
	"recvfrom":          unix.SYS_RECVFROM,
	"recvmsg":           unix.SYS_RECVMSG,
	"rseq":              unix.SYS_RSEQ,
	"rt_sigaction":      unix.SYS_RT_SIGACTION,
	"rt_sigprocmask":    unix.SYS_RT_SIGPROCMASK,
	"rt_sigreturn":      unix.SYS_RT_SIGRETURN,
	"sched_getaffinity": unix.SYS_SCHED_GETAFFINITY,
	"sched_yield":       unix.SYS_SCHED_YIELD,
	"sendmsg":           unix.SYS_SENDMSG,
	"sendto":            unix.SYS_SENDTO,
	"set_mempolicy":     unix.SYS_SET_MEMPOLICY,
	"set_robust_list":   unix.SYS_SET_ROBUST_LIST,
	"set_tid_address":   unix.SYS_SET_TID_ADDRESS,
	"sigaltstack":       unix.SYS_SIGALTSTACK,
	"socket":            unix.SYS_SOCKET,
	"statfs":            unix.SYS_STATFS,
	"statx":             unix.SYS_STATX,
	"sysinfo":           unix.SYS_SYSINFO,
	"timerfd_create":    unix.SYS_TIMERFD_CREATE,
	"timerfd_settime":   unix.SYS_TIMERFD_SETTIME,
	"tgkill":            unix.SYS_TGKILL,
	"unshare":           unix.SYS_UNSHARE,
	"wait4":             unix.SYS_WAIT4,
	"write":             unix.SYS_WRITE,
	"linkat":            unix.SYS_LINKAT,
	"unlinkat":          unix.SYS_UNLINKAT,
	"renameat":          unix.SYS_RENAMEAT,
	"renameat2":         unix.SYS_RENAMEAT2,
}

// auditArch is the AUDIT_ARCH_* value checked by the filter's first
// instruction on linux/arm64.
const auditArch uint32 = 0xc00000b7 // AUDIT_ARCH_AARCH64
