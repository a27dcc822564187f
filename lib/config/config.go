// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/inputbus/inputbus/lib/address"
)

// EnvironmentVariable names the config file for Load.
const EnvironmentVariable = "INPUTBUS_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the daemon configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Bus configures the listening socket.
	Bus BusConfig `yaml:"bus"`

	// Engines lists the engine type names registered on every
	// factory. Empty means every built-in type.
	Engines []string `yaml:"engines"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Bus     *BusConfig     `yaml:"bus,omitempty"`
	Engines []string       `yaml:"engines,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// BusConfig configures the listening socket.
type BusConfig struct {
	// Address is the bus address to listen on, for example
	// "unix:path=${XDG_RUNTIME_DIR}/inputbus/bus". Empty selects the
	// lib/address default.
	Address string `yaml:"address"`

	// SocketMode is the octal permission mode applied to a filesystem
	// socket, for example "0600". Empty leaves the umask mode.
	SocketMode string `yaml:"socket_mode"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text, json, or auto. Auto picks text when stderr is a
	// terminal and json otherwise.
	Format string `yaml:"format"`
}

// Default returns the default configuration, used as the base before
// a file is loaded and on its own when no file is given.
func Default() *Config {
	return &Config{
		Environment: Development,
		Bus: BusConfig{
			SocketMode: "0600",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by INPUTBUS_CONFIG. It
// fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your inputbus.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges one file into c. JSON is valid YAML, so JSONC files
// are stripped to plain JSON and decoded by the same YAML decoder.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Bus:     &BusConfig{SocketMode: "0600"},
				Logging: &LoggingConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Bus != nil {
		if overrides.Bus.Address != "" {
			c.Bus.Address = overrides.Bus.Address
		}
		if overrides.Bus.SocketMode != "" {
			c.Bus.SocketMode = overrides.Bus.SocketMode
		}
	}

	if len(overrides.Engines) > 0 {
		c.Engines = overrides.Engines
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in the address.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            os.Getenv("HOME"),
		"XDG_RUNTIME_DIR": os.Getenv("XDG_RUNTIME_DIR"),
		"UID":             strconv.Itoa(os.Getuid()),
	}
	c.Bus.Address = expandVars(c.Bus.Address, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// SocketModeValue parses Bus.SocketMode. Zero means unset.
func (c *Config) SocketModeValue() (os.FileMode, error) {
	if c.Bus.SocketMode == "" {
		return 0, nil
	}
	mode, err := strconv.ParseUint(c.Bus.SocketMode, 8, 32)
	if err != nil || mode > 0o777 {
		return 0, fmt.Errorf("bus.socket_mode %q is not an octal permission mode", c.Bus.SocketMode)
	}
	return os.FileMode(mode), nil
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level %q: %w", c.Logging.Level, err)
	}
	return level, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Bus.Address != "" {
		if _, err := address.Parse(c.Bus.Address); err != nil {
			errs = append(errs, fmt.Errorf("bus.address: %w", err))
		}
	}

	if _, err := c.SocketModeValue(); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	formats := []string{"text", "json", "auto"}
	if !contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	seen := make(map[string]bool)
	for _, name := range c.Engines {
		if name == "" {
			errs = append(errs, errors.New("engines: empty engine name"))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("engines: %q listed twice", name))
		}
		seen[name] = true
	}

	return errors.Join(errs...)
}

func contains(slice []string, value string) bool {
	for _, candidate := range slice {
		if candidate == value {
			return true
		}
	}
	return false
}
