// ABOUTME: Process environment for the console-session command
// ABOUTME: Selects the config file, the application profile and the default data directory

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Env holds the settings read from the process environment.
type Env struct {
	ConfigPath string `env:"CONSOLE_CONFIG"`
	App        string `env:"CONSOLE_APP" envDefault:"partner"`
	DataDir    string `env:"CONSOLE_DATA_DIR"`
	Home       string `env:"HOME"`
	XDGConfig  string `env:"XDG_CONFIG_HOME"`
	XDGData    string `env:"XDG_DATA_HOME"`
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// DefaultConfigPath is where the config file lives when CONSOLE_CONFIG is unset.
func (e Env) DefaultConfigPath() string {
	base := e.XDGConfig
	if base == "" {
		base = filepath.Join(e.Home, ".config")
	}
	return filepath.Join(base, "console-session", "config.yaml")
}

// DefaultStoragePath is the SQLite file used when no config file exists.
func (e Env) DefaultStoragePath() string {
	dir := e.DataDir
	if dir == "" {
		base := e.XDGData
		if base == "" {
			base = filepath.Join(e.Home, ".local", "share")
		}
		dir = filepath.Join(base, "console-session")
	}
	return filepath.Join(dir, "session.db")
}

// Resolve loads the config named by CONSOLE_CONFIG, else the default config
// path if it exists. With neither, it returns defaults backed by SQLite at
// DefaultStoragePath so state survives between invocations.
func (e Env) Resolve() (*Config, string, error) {
	if e.ConfigPath != "" {
		cfg, err := Load(e.ConfigPath)
		return cfg, e.ConfigPath, err
	}

	path := e.DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, path, err
	}

	cfg := Default()
	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.Path = e.DefaultStoragePath()
	return cfg, "", nil
}
