// Package config loads and validates microstack's process configuration.
// The surface is intentionally small: a handful of environment variables
// with sane defaults, optionally layered with a YAML file for anything
// that does not belong in the environment. Every value is read directly
// from its environment variable or the file; there is no *_FILE
// indirection for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved configuration for one microstack process.
type Config struct {
	// Server holds the single HTTP listener's address.
	Server ServerConfig `yaml:"server"`
	// DataDir is the root directory for scratch space used while
	// executing function handlers. It is created if missing.
	DataDir string `yaml:"data_dir"`
	// Logging controls the structured logger's verbosity and encoding.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the single listener every dialect is served on.
type ServerConfig struct {
	// Host is the interface to bind. Default: 0.0.0.0.
	Host string `yaml:"host"`
	// Port is the TCP port to bind. Default: 1337.
	Port int `yaml:"port"`
}

// Addr returns "host:port" for http.Server.Addr.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`
	// Format is one of json, text. Default: text.
	Format string `yaml:"format"`
}

const (
	defaultHost    = "0.0.0.0"
	defaultPort    = 1337
	defaultDataDir = "/tmp/microstack"
)

// envPrefix groups every environment override this process recognizes.
const envPrefix = "MICROSTACK_"

// Load builds a Config starting from defaults, optionally layering a YAML
// file at path (ignored if path is empty), then applying environment
// overrides, which always win. It returns an error if path is set but
// unreadable/malformed, or if an environment override is present but not
// parseable (e.g. MICROSTACK_PORT="abc").
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: defaultHost,
			Port: defaultPort,
		},
		DataDir: defaultDataDir,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers MICROSTACK_* environment variables on top of
// whatever defaults/file values are already in cfg.
func (c *Config) applyEnvOverrides() error {
	if v := strings.TrimSpace(os.Getenv(envPrefix + "HOST")); v != "" {
		c.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("%sPORT %q is not a valid TCP port", envPrefix, v)
		}
		c.Server.Port = port
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "DATA_DIR")); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(envPrefix + "LOG_FORMAT")); v != "" {
		c.Logging.Format = v
	}
	return nil
}
