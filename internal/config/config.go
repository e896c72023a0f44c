// ABOUTME: Configuration loading and parsing for claude-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete claude-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Claude    ClaudeConfig    `yaml:"claude"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Streaming StreamingConfig `yaml:"streaming"`
	Projects  ProjectsConfig  `yaml:"projects"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// ClaudeConfig holds backing-tool invocation configuration
type ClaudeConfig struct {
	BinaryPath    string `yaml:"binary_path"`
	DefaultModel  string `yaml:"default_model"`
	MaxConcurrent int    `yaml:"max_concurrent"`

	RunTimeout time.Duration `yaml:"-"`
	StopGrace  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	RunTimeoutRaw string `yaml:"run_timeout"`
	StopGraceRaw  string `yaml:"stop_grace"`
}

// SessionsConfig holds session lifecycle configuration
type SessionsConfig struct {
	IdleTimeout     time.Duration `yaml:"-"`
	CleanupInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	IdleTimeoutRaw     string `yaml:"idle_timeout"`
	CleanupIntervalRaw string `yaml:"cleanup_interval"`
}

// StreamingConfig holds SSE streaming configuration
type StreamingConfig struct {
	MaxContentChunks  int           `yaml:"max_content_chunks"`
	HeartbeatInterval time.Duration `yaml:"-"`

	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
}

// ProjectsConfig holds project workspace configuration
type ProjectsConfig struct {
	Root string `yaml:"root"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication and rate-limit configuration
type AuthConfig struct {
	RequireAuth       bool     `yaml:"require_auth"`
	APIKeys           []string `yaml:"api_keys"`
	JWTSecret         string   `yaml:"jwt_secret"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	Burst             int      `yaml:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a Config populated with defaults only, for use when no
// config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()

	// Defaults are well-formed duration strings
	_ = parseDurations(cfg)
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "0.0.0.0:8000"
	}
	if c.Claude.BinaryPath == "" {
		c.Claude.BinaryPath = "claude"
	}
	if c.Claude.DefaultModel == "" {
		c.Claude.DefaultModel = "claude-3-5-haiku-20241022"
	}
	if c.Claude.MaxConcurrent == 0 {
		c.Claude.MaxConcurrent = 10
	}
	if c.Claude.RunTimeoutRaw == "" {
		c.Claude.RunTimeoutRaw = "5m"
	}
	if c.Claude.StopGraceRaw == "" {
		c.Claude.StopGraceRaw = "5s"
	}
	if c.Sessions.IdleTimeoutRaw == "" {
		c.Sessions.IdleTimeoutRaw = "1h"
	}
	if c.Sessions.CleanupIntervalRaw == "" {
		c.Sessions.CleanupIntervalRaw = "5m"
	}
	if c.Streaming.MaxContentChunks == 0 {
		c.Streaming.MaxContentChunks = 5
	}
	if c.Streaming.HeartbeatIntervalRaw == "" {
		c.Streaming.HeartbeatIntervalRaw = "30s"
	}
	if c.Projects.Root == "" {
		c.Projects.Root = "./projects"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./claude-gateway.db"
	}
	if c.Auth.RequestsPerMinute == 0 {
		c.Auth.RequestsPerMinute = 60
	}
	if c.Auth.Burst == 0 {
		c.Auth.Burst = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Claude.BinaryPath == "" {
		return fmt.Errorf("claude.binary_path is required")
	}

	if c.Claude.MaxConcurrent < 1 {
		return fmt.Errorf("claude.max_concurrent must be at least 1")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.RequireAuth && len(c.Auth.APIKeys) == 0 && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.api_keys or auth.jwt_secret is required when auth.require_auth is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"claude.run_timeout", cfg.Claude.RunTimeoutRaw, &cfg.Claude.RunTimeout},
		{"claude.stop_grace", cfg.Claude.StopGraceRaw, &cfg.Claude.StopGrace},
		{"sessions.idle_timeout", cfg.Sessions.IdleTimeoutRaw, &cfg.Sessions.IdleTimeout},
		{"sessions.cleanup_interval", cfg.Sessions.CleanupIntervalRaw, &cfg.Sessions.CleanupInterval},
		{"streaming.heartbeat_interval", cfg.Streaming.HeartbeatIntervalRaw, &cfg.Streaming.HeartbeatInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
