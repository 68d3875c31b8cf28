package sandbox

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/glycin-project/glycin/internal/glyerr"
)

// DefaultAction controls what happens to a syscall not on the allow
// list: Trap delivers SIGSYS (useful while developing a new codec, so a
// missing syscall shows up as a diagnosable signal instead of a silent
// process death) and KillProcess terminates the whole helper
// immediately. Production codec registrations use KillProcess.
type DefaultAction int

const (
	ActionTrap DefaultAction = iota
	ActionKillProcess
)

// classic BPF / seccomp constants not exposed by golang.org/x/sys/unix
// under portable names; values are taken from <linux/seccomp.h> and
// <linux/filter.h> and are architecture-independent.
const (
	bpfLd  = 0x00
	bpfW   = 0x00
	bpfAbs = 0x20
	bpfJmp = 0x05
	bpfJeq = 0x10
	bpfK   = 0x00
	bpfRet = 0x06

	seccompRetAllow      = 0x7fff0000
	seccompRetTrap       = 0x00030000
	seccompRetKillProc   = 0x80000000
	seccompDataNrOffset  = 0  // offsetof(struct seccomp_data, nr)
	seccompDataArchOff   = 4  // offsetof(struct seccomp_data, arch)
	seccompModeFilter    = 2  // SECCOMP_MODE_FILTER
	seccompSetModeFilter = 1  // SECCOMP_SET_MODE_FILTER
	seccompFilterFlagLog = 2  // SECCOMP_FILTER_FLAG_LOG
)

// CompileFilter builds a classic-BPF seccomp program that allows exactly
// the named syscalls (any name this architecture's syscallNumbers table
// does not know about is silently dropped, as the reference
// implementation's libseccomp binding also tolerates) and applies
// defaultAction to everything else. The first two instructions reject
// any call made through a foreign syscall ABI (e.g. the 32-bit
// compatibility layer on amd64), which is how a sandboxed process could
// otherwise reach a syscall number excluded from the 64-bit allow list.
func CompileFilter(names []string, defaultAction DefaultAction) ([]unix.SockFilter, error) {
	seen := make(map[uint32]struct{}, len(names))
	var nrs []uint32
	for _, name := range names {
		nr, ok := syscallNumbers[name]
		if !ok {
			continue
		}
		if _, dup := seen[nr]; dup {
			continue
		}
		seen[nr] = struct{}{}
		nrs = append(nrs, nr)
	}
	if len(nrs) == 0 {
		return nil, glyerr.New(glyerr.KindSeccompError, fmt.Errorf("seccomp: allow list resolved to zero syscalls for this architecture"))
	}

	var retDefault uint32
	switch defaultAction {
	case ActionTrap:
		retDefault = seccompRetTrap
	case ActionKillProcess:
		retDefault = seccompRetKillProc
	default:
		return nil, glyerr.New(glyerr.KindSeccompError, fmt.Errorf("seccomp: unknown default action %d", defaultAction))
	}

	prog := make([]unix.SockFilter, 0, 4+2*len(nrs)+1)
	prog = append(prog,
		stmt(bpfLd|bpfW|bpfAbs, seccompDataArchOff),
		jump(bpfJmp|bpfJeq|bpfK, auditArch, 1, 0),
		ret(seccompRetKillProc),
		stmt(bpfLd|bpfW|bpfAbs, seccompDataNrOffset),
	)
	for _, nr := range nrs {
		prog = append(prog,
			jump(bpfJmp|bpfJeq|bpfK, nr, 0, 1),
			ret(seccompRetAllow),
		)
	}
	prog = append(prog, ret(retDefault))
	return prog, nil
}

// Load sets PR_SET_NO_NEW_PRIVS and installs prog as the seccomp filter
// of every thread of the calling process. It must be called after all
// other setup the process still needs, since a filter that disallows a
// syscall the current goroutine still needs to make (e.g. another mmap)
// takes effect right away.
func Load(prog []unix.SockFilter) error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return glyerr.New(glyerr.KindSeccompError, fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err))
	}
	fprog := &unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	if err := seccompSetFilter(fprog); err != nil {
		return glyerr.New(glyerr.KindSeccompError, fmt.Errorf("seccomp set filter: %w", err))
	}
	return nil
}

func stmt(code uint16, k uint32) unix.SockFilter {
	return unix.SockFilter{Code: code, K: k}
}

func jump(code uint16, k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: code, Jt: jt, Jf: jf, K: k}
}

func ret(k uint32) unix.SockFilter {
	return unix.SockFilter{Code: bpfRet | bpfK, K: k}
}
