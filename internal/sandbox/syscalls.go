package sandbox

// allowedSyscalls is the base allow-list covering process, memory,
// filesystem-read, socket-receive, timer, signal, thread, and futex
// operations a codec helper needs. Verbatim (syscall-name-for-name) from
// the reference implementation's ALLOWED_SYSCALLS so the security
// posture does not silently drift during translation.
var allowedSyscalls = []string{
	"access", "arch_prctl", "brk", "capget", "capset", "chdir",
	"clock_getres", "clock_gettime", "clock_gettime64", "clone", "clone3",
	"close", "connect", "creat", "dup", "epoll_create", "epoll_create1",
	"epoll_ctl", "epoll_pwait", "epoll_wait", "eventfd", "eventfd2",
	"execve", "exit", "exit_group", "faccessat", "fadvise64",
	"fadvise64_64", "fchdir", "fcntl", "fcntl64", "fstat", "fstatfs",
	"fstatfs64", "ftruncate", "futex", "futex_time64", "get_mempolicy",
	"getcwd", "getdents64", "getegid", "getegid32", "geteuid",
	"geteuid32", "getgid", "getgid32", "getpid", "getppid", "getrandom",
	"gettid", "gettimeofday", "getuid", "getuid32", "ioctl", "madvise",
	"membarrier", "memfd_create", "mmap", "mmap2", "mprotect", "mremap",
	"munmap", "newfstatat", "open", "openat", "pipe", "pipe2",
	"pivot_root", "poll", "ppoll", "ppoll_time64", "prctl", "pread64",
	"prlimit64", "read", "readlink", "readlinkat", "recvfrom", "recvmsg",
	"rseq", "rt_sigaction", "rt_sigprocmask", "rt_sigreturn",
	"sched_getaffinity", "sched_yield", "sendmsg", "sendto",
	"set_mempolicy", "set_robust_list", "set_thread_area",
	"set_tid_address", "sigaltstack", "signalfd4", "socket", "socketcall",
	"stat", "statfs", "statfs64", "statx", "sysinfo", "timerfd_create",
	"timerfd_settime", "timerfd_settime64", "tgkill", "ugetrlimit",
	"unshare", "wait4", "write",
}

// allowedSyscallsFontconfig is the small extension granted to codecs
// that declare fontconfig=true, so fontconfig can rebuild its caches.
var allowedSyscallsFontconfig = []string{
	"link", "linkat", "unlink", "unlinkat", "rename", "renameat", "renameat2",
}

// SyscallAllowList returns the full set of syscall names permitted for a
// codec helper, including the fontconfig extension when requested.
func SyscallAllowList(fontconfig bool) []string {
	out := make([]string, 0, len(allowedSyscalls)+len(allowedSyscallsFontconfig))
	out = append(out, allowedSyscalls...)
	if fontconfig {
		out = append(out, allowedSyscallsFontconfig...)
	}
	return out
}
