// Package config handles configuration loading for console-session.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The package provides validation and sensible defaults; with no
// file at all, Default() gives in-memory storage and no remote endpoint.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CONSOLE_CONFIG environment variable
//  2. ~/.config/console-session/config.yaml
//
// A file ending in .toml is parsed as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	storage:
//	  seal_key: "${CONSOLE_SEAL_KEY}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	graphql:
//	  timeout: "15s"
//	  retry_base: "200ms"
//
// # Configuration Sections
//
//	logging:
//	  level: "info"          # debug, info, warn, error
//	  format: "text"         # text or json
//
//	storage:
//	  driver: "sqlite"       # memory or sqlite
//	  path: "session.db"     # relative to the config file
//	  seal_key: ""           # base64 32-byte key, enables encryption at rest
//
//	graphql:
//	  endpoint: "https://api.example.com/graphql"
//	  timeout: "15s"
//	  max_retries: 2         # 0 uses the default
//	  retry_base: "200ms"
//
//	transport:
//	  expiry_check: false    # skip attaching JWTs whose exp has passed
//
//	metrics:
//	  enabled: false
package config
