// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:9000"

claude:
  binary_path: "/usr/local/bin/claude"
  default_model: "claude-sonnet-4-20250514"
  max_concurrent: 4
  run_timeout: "2m"
  stop_grace: "3s"

sessions:
  idle_timeout: "30m"
  cleanup_interval: "1m"

streaming:
  max_content_chunks: 8
  heartbeat_interval: "15s"

database:
  path: "./test.db"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("HTTPAddr: got %q", cfg.Server.HTTPAddr)
	}
	if cfg.Claude.BinaryPath != "/usr/local/bin/claude" {
		t.Errorf("BinaryPath: got %q", cfg.Claude.BinaryPath)
	}
	if cfg.Claude.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent: got %d", cfg.Claude.MaxConcurrent)
	}
	if cfg.Claude.RunTimeout != 2*time.Minute {
		t.Errorf("RunTimeout: got %v", cfg.Claude.RunTimeout)
	}
	if cfg.Sessions.IdleTimeout != 30*time.Minute {
		t.Errorf("IdleTimeout: got %v", cfg.Sessions.IdleTimeout)
	}
	if cfg.Sessions.CleanupInterval != time.Minute {
		t.Errorf("CleanupInterval: got %v", cfg.Sessions.CleanupInterval)
	}
	if cfg.Streaming.MaxContentChunks != 8 {
		t.Errorf("MaxContentChunks: got %d", cfg.Streaming.MaxContentChunks)
	}
	if cfg.Streaming.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval: got %v", cfg.Streaming.HeartbeatInterval)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8000" {
		t.Errorf("default HTTPAddr: got %q", cfg.Server.HTTPAddr)
	}
	if cfg.Claude.BinaryPath != "claude" {
		t.Errorf("default BinaryPath: got %q", cfg.Claude.BinaryPath)
	}
	if cfg.Claude.MaxConcurrent != 10 {
		t.Errorf("default MaxConcurrent: got %d", cfg.Claude.MaxConcurrent)
	}
	if cfg.Streaming.MaxContentChunks != 5 {
		t.Errorf("default MaxContentChunks: got %d", cfg.Streaming.MaxContentChunks)
	}
	if cfg.Sessions.IdleTimeout != time.Hour {
		t.Errorf("default IdleTimeout: got %v", cfg.Sessions.IdleTimeout)
	}
	if cfg.Auth.RequestsPerMinute != 60 || cfg.Auth.Burst != 10 {
		t.Errorf("default rate limits: got %+v", cfg.Auth)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_GATEWAY_DB_PATH", "/tmp/expanded.db")

	configPath := writeConfig(t, `
database:
  path: "${TEST_GATEWAY_DB_PATH}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/expanded.db" {
		t.Errorf("expanded path: got %q", cfg.Database.Path)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
sessions:
  idle_timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "idle_timeout") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_AuthRequiresCredentials(t *testing.T) {
	cfg := Default()
	cfg.Auth.RequireAuth = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when auth required without keys")
	}

	cfg.Auth.APIKeys = []string{"sk-test"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error with api key set: %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
	if cfg.Claude.StopGrace != 5*time.Second {
		t.Errorf("default StopGrace: got %v", cfg.Claude.StopGrace)
	}
}
