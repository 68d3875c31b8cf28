// Package glycin is the public entry point: a library for decoding and
// editing raster images by delegating the actual codec work to
// short-lived, strongly sandboxed helper processes. Callers get a
// uniform API across many formats while each codec runs isolated from
// the caller's address space, file system, and network.
//
// Grounded on the teacher's root-package wrapping pattern as seen in
// Skryldev-image-processor's imageprocessor.go (a thin Processor
// wrapping core.Processor, registries, and a pipeline factory): this
// package is the same kind of thin orchestration layer, wiring
// internal/config's registry, internal/pool's process pool,
// internal/hostproxy's spawn/RPC, internal/mime's detection, and
// internal/pipeline's post-processing into the Loader/Editor surface
// callers actually use.
package glycin

import (
	"fmt"
	"log/slog"

	"github.com/glycin-project/glycin/internal/config"
	"github.com/glycin-project/glycin/internal/glyerr"
	"github.com/glycin-project/glycin/internal/pool"
)

// CompatVersion is the on-disk codec registry's compatibility version
// (the "<N>+" path segment under glycin-loaders/). It increments only
// on a protocol-breaking change to the host<->helper bus.
const CompatVersion = 1

// Runtime holds the process pool and codec registry shared by every
// Loader and Editor created from it. Callers typically create one
// Runtime per process and reuse it across many Load/Edit calls so
// helper processes are actually pooled.
type Runtime struct {
	cfg      *config.Config
	registry *config.Registry
	pool     *pool.Pool
	logger   *slog.Logger
}

// New builds a Runtime from cfg: it loads the on-disk codec registry
// from cfg.DataDirs and starts a process pool governed by
// cfg.Pool/cfg.Sandbox. Pass nil for logger to use slog's default.
func New(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg, err := config.LoadRegistry(cfg.DataDirs, CompatVersion)
	if err != nil {
		return nil, fmt.Errorf("glycin: loading codec registry: %w", err)
	}
	p := pool.New(cfg.Pool.LoaderRetentionTime.Duration(), logger)
	return &Runtime{cfg: cfg, registry: reg, pool: p, logger: logger}, nil
}

// Reload re-reads the codec registry from cfg.DataDirs, replacing the
// Runtime's view of it. It does not touch already-pooled processes:
// a process keyed by a configuration hash that the new registry no
// longer produces is simply never reacquired, and drains out via the
// pool's normal idle sweep. Intended to be called from a SIGHUP
// handler, per A5.
func (rt *Runtime) Reload() error {
	reg, err := config.LoadRegistry(rt.cfg.DataDirs, CompatVersion)
	if err != nil {
		return fmt.Errorf("glycin: reloading codec registry: %w", err)
	}
	rt.registry = reg
	return nil
}

// Close stops the Runtime's process pool, closing every pooled helper.
func (rt *Runtime) Close() error {
	return rt.pool.Close()
}

// Stats exposes the underlying pool's occupancy, for callers wiring
// their own diagnostics rather than internal/diag's HTTP surface.
func (rt *Runtime) Stats() pool.Stats {
	return rt.pool.Stats()
}

// Pool exposes the underlying process pool so a host process (cmd/glycind)
// can mount internal/diag's HTTP handlers against it.
func (rt *Runtime) Pool() *pool.Pool {
	return rt.pool
}

func (rt *Runtime) lookup(kind pool.Kind, mime string) (config.RegistryEntry, error) {
	entry, ok := rt.registry.Lookup(kind, mime)
	if !ok {
		return config.RegistryEntry{}, glyerr.New(glyerr.KindNoLoadersConfigured,
			fmt.Errorf("glycin: no %s configured for mime type %q", kind, mime))
	}
	return entry, nil
}
