package common

import "testing"

func TestConfig_DefaultPort(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8080)
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("TASKTRACE_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_StorageRootEnvOverrides(t *testing.T) {
	t.Setenv("TASKTRACE_QUEUE_ROOT", "/tmp/q")
	t.Setenv("TASKTRACE_DEP_ROOT", "/tmp/d")
	t.Setenv("TASKTRACE_LOG_ROOT", "/tmp/l")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Storage.QueueRoot != "/tmp/q" {
		t.Errorf("Storage.QueueRoot = %q, want %q", cfg.Storage.QueueRoot, "/tmp/q")
	}
	if cfg.Storage.DepRoot != "/tmp/d" {
		t.Errorf("Storage.DepRoot = %q, want %q", cfg.Storage.DepRoot, "/tmp/d")
	}
	if cfg.Storage.LogRoot != "/tmp/l" {
		t.Errorf("Storage.LogRoot = %q, want %q", cfg.Storage.LogRoot, "/tmp/l")
	}
}

func TestWorkerConfig_GetPollFrequency_Default(t *testing.T) {
	cfg := &WorkerConfig{}
	if d := cfg.GetPollFrequency(); d.String() != "1s" {
		t.Errorf("GetPollFrequency() = %v, want 1s", d)
	}
}

func TestWorkerConfig_GetPollFrequency_Configured(t *testing.T) {
	cfg := &WorkerConfig{PollFrequency: "250ms"}
	if d := cfg.GetPollFrequency(); d.String() != "250ms" {
		t.Errorf("GetPollFrequency() = %v, want 250ms", d)
	}
}

func TestWorkerConfig_GetPollFrequency_InvalidFallsBack(t *testing.T) {
	cfg := &WorkerConfig{PollFrequency: "not-a-duration"}
	if d := cfg.GetPollFrequency(); d.String() != "1s" {
		t.Errorf("GetPollFrequency() = %v, want 1s fallback", d)
	}
}

func TestWorkerConfig_GetForceExitGrace_Default(t *testing.T) {
	cfg := &WorkerConfig{}
	if d := cfg.GetForceExitGrace(); d.String() != "5s" {
		t.Errorf("GetForceExitGrace() = %v, want 5s", d)
	}
}

func TestWorkerConfig_GetForceExitGrace_EnvOverride(t *testing.T) {
	t.Setenv("TASKTRACE_WORKER_FORCE_EXIT_GRACE", "2s")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Worker.ForceExitGrace != "2s" {
		t.Errorf("Worker.ForceExitGrace = %q after env override, want %q", cfg.Worker.ForceExitGrace, "2s")
	}
	if d := cfg.Worker.GetForceExitGrace(); d.String() != "2s" {
		t.Errorf("GetForceExitGrace() = %v after env override, want 2s", d)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.IsProduction() {
		t.Error("default environment should not be production")
	}

	cfg.Environment = "production"
	if !cfg.IsProduction() {
		t.Error("environment=production should report IsProduction() true")
	}

	cfg.Environment = "PROD"
	if !cfg.IsProduction() {
		t.Error("environment=PROD should report IsProduction() true (case-insensitive)")
	}
}

func TestLoadConfig_SkipsMissingFiles(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/does-not-exist.toml")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil for a missing file", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
}
