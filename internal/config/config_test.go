package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Executor.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d, want 4", cfg.Executor.MaxWorkers)
	}
	if cfg.Executor.WorkerTimeout != 2*time.Minute {
		t.Errorf("WorkerTimeout = %v, want 2m", cfg.Executor.WorkerTimeout)
	}
	if !cfg.Planner.Replanning {
		t.Error("replanning should default on")
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `anthropic:
  model: claude-sonnet-4-20250514
executor:
  max_workers: 8
  worker_timeout: 30s
  max_retries: 5
planner:
  replanning: false
workspace:
  file_root: /srv/docs
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", cfg.Anthropic.Model)
	}
	if cfg.Executor.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d, want 8", cfg.Executor.MaxWorkers)
	}
	if cfg.Executor.WorkerTimeout != 30*time.Second {
		t.Errorf("WorkerTimeout = %v, want 30s", cfg.Executor.WorkerTimeout)
	}
	if cfg.Executor.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Executor.MaxRetries)
	}
	if cfg.Planner.Replanning {
		t.Error("replanning should be off")
	}
	if cfg.Workspace.FileRoot != "/srv/docs" {
		t.Errorf("FileRoot = %q", cfg.Workspace.FileRoot)
	}
	// Unset keys keep their defaults.
	if cfg.Executor.RetryBackoff != time.Second {
		t.Errorf("RetryBackoff = %v, want 1s", cfg.Executor.RetryBackoff)
	}
}

func TestLoadFromPathExpandsAPIKey(t *testing.T) {
	t.Setenv("TASUKE_TEST_KEY", "sk-ant-test")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "anthropic:\n  api_key: ${TASUKE_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-test" {
		t.Errorf("api key = %q, want expanded value", cfg.Anthropic.APIKey)
	}
}
