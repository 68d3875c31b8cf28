package glycin

import (
	"context"
	"os"

	"github.com/glycin-project/glycin/internal/config"
	"github.com/glycin-project/glycin/internal/hostproxy"
	"github.com/glycin-project/glycin/internal/pool"
	"github.com/glycin-project/glycin/internal/sandbox"
)

func sandboxMechanism(m config.SandboxMechanism) sandbox.Mechanism {
	switch m {
	case config.MechanismPortal:
		return sandbox.MechanismPortal
	case config.MechanismNone:
		return sandbox.MechanismNone
	default:
		return sandbox.MechanismNamespace
	}
}

// seccompDefaultAction resolves cfg's configured default action,
// honoring the GLYCIN_SECCOMP_DEFAULT_ACTION environment override per
// SPEC_FULL.md's external-interfaces list.
func seccompDefaultAction(cfg config.SeccompDefaultAction) sandbox.DefaultAction {
	if os.Getenv("GLYCIN_SECCOMP_DEFAULT_ACTION") == "KILL_PROCESS" {
		return sandbox.ActionKillProcess
	}
	if cfg == config.SeccompActionKillProcess {
		return sandbox.ActionKillProcess
	}
	return sandbox.ActionTrap
}

// spawnerFor builds a pool.Spawner that launches entry's executable
// under rt's configured sandbox mechanism, optionally exposing baseDir
// read-only when the caller allows it and the entry requests it.
func (rt *Runtime) spawnerFor(entry config.RegistryEntry, baseDir string, allowBaseDir bool) pool.Spawner {
	return func(ctx context.Context) (pool.Handle, error) {
		opts := sandbox.Options{
			Mechanism: sandboxMechanism(rt.cfg.Sandbox.Mechanism),
			Entry: sandbox.CodecEntry{
				Exec:          entry.Exec,
				ExposeBaseDir: entry.ExposeBaseDir,
				Fontconfig:    entry.Fontconfig,
			},
			BaseDir:              baseDir,
			AllowBaseDir:         allowBaseDir,
			DefaultSeccompAction: seccompDefaultAction(rt.cfg.Sandbox.SeccompDefaultAction),
		}
		return hostproxy.Spawn(ctx, opts)
	}
}
