// ABOUTME: Configuration loading and parsing for console-session
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Defaults applied by Load when a value is not set.
const (
	DefaultGraphQLTimeout = 15 * time.Second
	DefaultRetryBase      = 200 * time.Millisecond
	DefaultMaxRetries     = 2
	DefaultMetricsListen  = "127.0.0.1:9464"
)

// Config represents the complete console-session configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	GraphQL   GraphQLConfig   `yaml:"graphql" toml:"graphql"`
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// StorageConfig selects the durable storage backend
type StorageConfig struct {
	Driver  string `yaml:"driver" toml:"driver"`
	Path    string `yaml:"path" toml:"path"`
	SealKey string `yaml:"seal_key" toml:"seal_key"` // base64, 32 bytes; empty disables sealing
}

// GraphQLConfig holds the remote API endpoint and retry policy
type GraphQLConfig struct {
	Endpoint   string        `yaml:"endpoint" toml:"endpoint"`
	Timeout    time.Duration `yaml:"-" toml:"-"`
	RetryBase  time.Duration `yaml:"-" toml:"-"`
	MaxRetries int           `yaml:"max_retries" toml:"max_retries"`

	// Raw string values for unmarshaling
	TimeoutRaw   string `yaml:"timeout" toml:"timeout"`
	RetryBaseRaw string `yaml:"retry_base" toml:"retry_base"`
}

// TransportConfig controls how credentials are attached to outgoing requests
type TransportConfig struct {
	ExpiryCheck bool `yaml:"expiry_check" toml:"expiry_check"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen" toml:"listen"` // address for /metrics while watching
}

// Default returns the configuration used when no file exists: in-memory storage
// and no remote endpoint.
func Default() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{Driver: DriverMemory},
	}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, err
	}

	// Relative storage paths are resolved against the config file location.
	if cfg.Storage.Path != "" && cfg.Storage.Path != ":memory:" && !filepath.IsAbs(cfg.Storage.Path) {
		cfg.Storage.Path = filepath.Join(filepath.Dir(path), cfg.Storage.Path)
	}

	return cfg, nil
}

// Parse decodes configuration data, then expands, defaults and validates it.
func Parse(data []byte, isTOML bool) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// envVarPattern matches ${VAR_NAME}.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
	}
	if cfg.GraphQL.Timeout == 0 {
		cfg.GraphQL.Timeout = DefaultGraphQLTimeout
	}
	if cfg.GraphQL.RetryBase == 0 {
		cfg.GraphQL.RetryBase = DefaultRetryBase
	}
	if cfg.GraphQL.MaxRetries == 0 {
		cfg.GraphQL.MaxRetries = DefaultMaxRetries
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported (use memory or sqlite)", c.Storage.Driver)
	}

	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format %q is not supported (use json or text)", c.Logging.Format)
	}

	if c.GraphQL.Endpoint != "" && !strings.HasPrefix(c.GraphQL.Endpoint, "http://") && !strings.HasPrefix(c.GraphQL.Endpoint, "https://") {
		return fmt.Errorf("graphql.endpoint must be an http(s) URL")
	}

	if c.GraphQL.MaxRetries < 0 {
		return fmt.Errorf("graphql.max_retries must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.GraphQL.TimeoutRaw != "" {
		cfg.GraphQL.Timeout, err = time.ParseDuration(cfg.GraphQL.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.GraphQL.TimeoutRaw, err)
		}
	}

	if cfg.GraphQL.RetryBaseRaw != "" {
		cfg.GraphQL.RetryBase, err = time.ParseDuration(cfg.GraphQL.RetryBaseRaw)
		if err != nil {
			return fmt.Errorf("parsing retry_base %q: %w", cfg.GraphQL.RetryBaseRaw, err)
		}
	}

	return nil
}
