package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
workbench:
  base_url: http://localhost:9999
  auth_token: secret-token
  request_timeout: 10s
swarm:
  task_timeout: 5m
  poll_interval: 1s
  per_agent_mem_gb: 2.5
  max_retries: 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Workbench.BaseURL != "http://localhost:9999" {
		t.Errorf("base_url = %q", cfg.Workbench.BaseURL)
	}
	if cfg.Workbench.AuthToken != "secret-token" {
		t.Errorf("auth_token = %q", cfg.Workbench.AuthToken)
	}
	if cfg.Workbench.RequestTimeout != 10*time.Second {
		t.Errorf("request_timeout = %v", cfg.Workbench.RequestTimeout)
	}
	if cfg.Swarm.TaskTimeout != 5*time.Minute {
		t.Errorf("task_timeout = %v", cfg.Swarm.TaskTimeout)
	}
	if cfg.Swarm.PerAgentMemGB != 2.5 {
		t.Errorf("per_agent_mem_gb = %v", cfg.Swarm.PerAgentMemGB)
	}
	if cfg.Swarm.MaxRetries != 5 {
		t.Errorf("max_retries = %d", cfg.Swarm.MaxRetries)
	}
}

func TestLoadFromPathDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("workbench:\n  base_url: http://x\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Swarm.TaskTimeout != 10*time.Minute {
		t.Errorf("default task_timeout = %v, want 10m", cfg.Swarm.TaskTimeout)
	}
	if cfg.Swarm.PollInterval != 3*time.Second {
		t.Errorf("default poll_interval = %v, want 3s", cfg.Swarm.PollInterval)
	}
	if cfg.Swarm.StaleThreshold != 5*time.Minute {
		t.Errorf("default stale_threshold = %v, want 5m", cfg.Swarm.StaleThreshold)
	}
	if cfg.Swarm.PerAgentMemGB != 3.0 {
		t.Errorf("default per_agent_mem_gb = %v, want 3", cfg.Swarm.PerAgentMemGB)
	}
	if cfg.Swarm.MaxRetries != 3 {
		t.Errorf("default max_retries = %d, want 3", cfg.Swarm.MaxRetries)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("SWARM_TEST_TOKEN", "abc123")

	if got := expandEnv("${SWARM_TEST_TOKEN}"); got != "abc123" {
		t.Errorf("expandEnv = %q, want abc123", got)
	}
	if got := expandEnv("plain"); got != "plain" {
		t.Errorf("expandEnv = %q, want plain", got)
	}
}
