// Package config provides configuration loading for patternd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (PATTERND_DATABASE_PATH, PATTERND_LOGGING_LEVEL, ...)
//  2. YAML config file (~/.config/patternd/config.yaml by default)
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/patternd/internal/logging"
)

const (
	envPrefix         = "PATTERND_"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Logging  logging.Config `koanf:"logging"`
	Seed     SeedConfig     `koanf:"seed"`
	Server   ServerConfig   `koanf:"server"`
}

// DatabaseConfig configures the SQLite pattern store.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `koanf:"path"`
}

// SeedConfig configures corpus seeding.
type SeedConfig struct {
	// Path is an optional YAML corpus file loaded at startup in addition
	// to the built-in corpus.
	Path string `koanf:"path"`

	// Watch enables hot reload of the corpus file on change.
	Watch bool `koanf:"watch"`
}

// ServerConfig identifies the MCP server implementation.
type ServerConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// Load reads configuration from the YAML file at configPath (skipped when
// the file does not exist), overrides with PATTERND_* environment
// variables, applies defaults, and validates. An empty configPath uses the
// default location.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "patternd", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// PATTERND_DATABASE_PATH -> database.path
	// PATTERND_LOGGING_LEVEL -> logging.level
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		trimmed := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(trimmed, "_", 2)
		if len(parts) == 1 {
			return trimmed
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Database.Path = filepath.Join(home, ".config", "patternd", "patterns.db")
		} else {
			cfg.Database.Path = "patterns.db"
		}
	}

	defaults := logging.NewDefaultConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Format
	}
	if cfg.Logging.Fields == nil {
		cfg.Logging.Fields = defaults.Fields
	}

	if cfg.Server.Name == "" {
		cfg.Server.Name = "patternd"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Seed.Watch && c.Seed.Path == "" {
		return fmt.Errorf("seed watch requires a seed path")
	}
	return nil
}

// EnsureConfigDir creates the patternd config directory if it doesn't
// exist, so first runs have a place for the default database.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "patternd")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}
