// Package config loads glycind's two distinct configuration surfaces:
// the host daemon's own YAML config (A2, this file and defaults.go) and
// the on-disk GLib-keyfile-style codec registry (C8, registry.go).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete glycind host daemon configuration.
type Config struct {
	Pool        PoolConfig        `yaml:"pool"`
	Sandbox     SandboxConfig     `yaml:"sandbox"`
	DataDirs    []string          `yaml:"data_dirs"`
	Logging     LogConfig         `yaml:"logging"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// PoolConfig tunes internal/pool's per-key helper lifecycle.
type PoolConfig struct {
	LoaderRetentionTime   Duration `yaml:"loader_retention_time"`
	MaxParallelOperations int      `yaml:"max_parallel_operations"`
	SweepInterval         Duration `yaml:"sweep_interval"`
}

// SandboxMechanism names one of internal/sandbox's three build strategies.
type SandboxMechanism string

const (
	MechanismNamespace SandboxMechanism = "namespace"
	MechanismPortal    SandboxMechanism = "portal"
	MechanismNone      SandboxMechanism = "none"
)

// SeccompDefaultAction names what a rejected syscall does to the helper.
type SeccompDefaultAction string

const (
	SeccompActionTrap        SeccompDefaultAction = "trap"
	SeccompActionKillProcess SeccompDefaultAction = "kill_process"
)

// SandboxConfig sets internal/sandbox's process-wide defaults; a
// GLYCIN_SECCOMP_DEFAULT_ACTION=KILL_PROCESS environment override, if
// present, takes precedence over SeccompDefaultAction (see A2 in
// SPEC_FULL.md's environment-variables list).
type SandboxConfig struct {
	Mechanism            SandboxMechanism      `yaml:"mechanism"`
	SeccompDefaultAction SeccompDefaultAction  `yaml:"seccomp_default_action"`
}

// LogConfig configures the structured logger every glycin component writes to.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"`
}

// DiagnosticsConfig configures internal/diag's HTTP surface.
type DiagnosticsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Address     string `yaml:"address"`
	MetricsPath string `yaml:"metrics_path"`
}

// Duration is a time.Duration that supports YAML string unmarshaling.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads config from a YAML file, applying defaults for missing values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Pool.MaxParallelOperations < 1 {
		return fmt.Errorf("pool.max_parallel_operations must be >= 1, got %d", c.Pool.MaxParallelOperations)
	}
	if c.Pool.LoaderRetentionTime.Duration() <= 0 {
		return fmt.Errorf("pool.loader_retention_time must be > 0, got %s", c.Pool.LoaderRetentionTime.Duration())
	}
	if c.Pool.SweepInterval.Duration() <= 0 {
		return fmt.Errorf("pool.sweep_interval must be > 0, got %s", c.Pool.SweepInterval.Duration())
	}

	switch c.Sandbox.Mechanism {
	case MechanismNamespace, MechanismPortal, MechanismNone:
	default:
		return fmt.Errorf("sandbox.mechanism must be namespace, portal, or none, got %q", c.Sandbox.Mechanism)
	}
	switch c.Sandbox.SeccompDefaultAction {
	case SeccompActionTrap, SeccompActionKillProcess:
	default:
		return fmt.Errorf("sandbox.seccomp_default_action must be trap or kill_process, got %q", c.Sandbox.SeccompDefaultAction)
	}

	if len(c.DataDirs) == 0 {
		return fmt.Errorf("data_dirs must list at least one codec-registry search root")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Diagnostics.Enabled && c.Diagnostics.Address == "" {
		return fmt.Errorf("diagnostics.address is required when diagnostics are enabled")
	}
	return nil
}
