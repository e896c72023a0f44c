// Package config handles configuration loading for claude-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${CLAUDE_GATEWAY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  idle_timeout: "1h"
//	  cleanup_interval: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//
// Claude CLI invocation:
//
//	claude:
//	  binary_path: "claude"
//	  default_model: "claude-3-5-haiku-20241022"
//	  max_concurrent: 10
//	  run_timeout: "5m"
//	  stop_grace: "5s"
//
// Streaming:
//
//	streaming:
//	  max_content_chunks: 5
//	  heartbeat_interval: "30s"
//
// Database:
//
//	database:
//	  path: "/var/lib/claude-gateway/gateway.db"
//
// Authentication:
//
//	auth:
//	  require_auth: true
//	  api_keys: ["sk-..."]
//	  jwt_secret: "${CLAUDE_GATEWAY_JWT_SECRET}"
//	  requests_per_minute: 60
//	  burst: 10
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
