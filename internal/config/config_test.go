package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Pool.MaxParallelOperations != 1 {
		t.Errorf("expected max_parallel_operations 1, got %d", cfg.Pool.MaxParallelOperations)
	}
	if cfg.Pool.LoaderRetentionTime.Duration() != 60*time.Second {
		t.Errorf("expected loader_retention_time 60s, got %s", cfg.Pool.LoaderRetentionTime.Duration())
	}
	if cfg.Sandbox.Mechanism != MechanismNamespace {
		t.Errorf("expected mechanism namespace, got %s", cfg.Sandbox.Mechanism)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate cleanly: %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	yamlBody := `
pool:
  loader_retention_time: 20s
  max_parallel_operations: 4
  sweep_interval: 5s
sandbox:
  mechanism: portal
  seccomp_default_action: kill_process
data_dirs:
  - /usr/share
  - /usr/local/share
logging:
  level: debug
  format: text
  output: stdout
diagnostics:
  enabled: true
  address: "127.0.0.1:9191"
  metrics_path: /metrics
`
	dir := t.TempDir()
	path := filepath.Join(dir, "glycind.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pool.MaxParallelOperations != 4 {
		t.Errorf("expected max_parallel_operations 4, got %d", cfg.Pool.MaxParallelOperations)
	}
	if cfg.Pool.LoaderRetentionTime.Duration() != 20*time.Second {
		t.Errorf("expected loader_retention_time 20s, got %s", cfg.Pool.LoaderRetentionTime.Duration())
	}
	if cfg.Sandbox.Mechanism != MechanismPortal {
		t.Errorf("expected mechanism portal, got %s", cfg.Sandbox.Mechanism)
	}
	if cfg.Sandbox.SeccompDefaultAction != SeccompActionKillProcess {
		t.Errorf("expected seccomp_default_action kill_process, got %s", cfg.Sandbox.SeccompDefaultAction)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/glycind.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidateRejectsBadMechanism(t *testing.T) {
	cfg := Default()
	cfg.Sandbox.Mechanism = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unrecognized sandbox mechanism")
	}
}

func TestValidateRejectsZeroMaxParallelOperations(t *testing.T) {
	cfg := Default()
	cfg.Pool.MaxParallelOperations = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for max_parallel_operations < 1")
	}
}

func TestValidateRejectsEmptyDataDirs(t *testing.T) {
	cfg := Default()
	cfg.DataDirs = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for empty data_dirs")
	}
}

func TestValidateRejectsDiagnosticsEnabledWithoutAddress(t *testing.T) {
	cfg := Default()
	cfg.Diagnostics.Address = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for diagnostics enabled with no address")
	}
}

func TestDurationMarshalYAML(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	if out != "1m30s" {
		t.Fatalf("MarshalYAML: got %v want 1m30s", out)
	}
}
