package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Reasoning.TimeoutSeconds != 12 {
		t.Errorf("reasoning timeout = %d, want 12", cfg.Reasoning.TimeoutSeconds)
	}
	if cfg.Effects.TimeoutSeconds != 8 {
		t.Errorf("effects timeout = %d, want 8", cfg.Effects.TimeoutSeconds)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("config file should not exist")
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Render.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want default 44100", cfg.Render.SampleRate)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"
output_dir = "` + filepath.Join(dir, "output") + `"

[render]
sample_rate = 48000

[workflow]
worker_count = 1
retention_hours = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("config file should exist")
	}
	if cfg.Render.SampleRate != 48000 {
		t.Errorf("sample rate = %d, want 48000", cfg.Render.SampleRate)
	}
	if cfg.Workflow.RetentionHours != 2 {
		t.Errorf("retention = %d, want 2", cfg.Workflow.RetentionHours)
	}
}

func TestValidateRejectsBadSampleRate(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Render.SampleRate = 12345
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected sample rate validation error")
	}
}

func TestValidateRejectsPositivePeakCeiling(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Render.PeakCeiling = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected peak ceiling validation error")
	}
}

func TestNormalizeCapsWorkerCount(t *testing.T) {
	cfg := Default()
	cfg.Workflow.WorkerCount = 4096
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Workflow.WorkerCount > 4096 {
		t.Fatal("worker count should not grow")
	}
	if cfg.Workflow.WorkerCount < 1 {
		t.Fatal("worker count should stay positive")
	}
}
