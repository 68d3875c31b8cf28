package config

import "time"

// Default returns a Config with sensible defaults, directly adapted
// from the teacher's Default() shape (each section's own zero-value
// problems papered over here, then overlaid by Load's YAML unmarshal).
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			LoaderRetentionTime:   Duration(60 * time.Second),
			MaxParallelOperations: 1,
			SweepInterval:         Duration(5 * time.Second),
		},
		Sandbox: SandboxConfig{
			Mechanism:             MechanismNamespace,
			SeccompDefaultAction: SeccompActionTrap,
		},
		DataDirs: []string{
			"/usr/share",
			"/usr/local/share",
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:     true,
			Address:     "127.0.0.1:9191",
			MetricsPath: "/metrics",
		},
	}
}
