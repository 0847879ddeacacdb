/*
Copyright 2024 serialmux Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config provides configuration loading and management for the
// serialmux agent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/serialmux/serialmux/internal/serial"
	"github.com/spf13/viper"
)

// Config is the top-level shape of config.yaml (spec.md §6).
type Config struct {
	Server            ServerConfig             `mapstructure:"server" yaml:"server"`
	SerialConnections []SerialConnectionConfig `mapstructure:"serial_connections" yaml:"serial_connections"`
	Logging           LoggingConfig            `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds the HTTP control API's listen address.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// LoggingConfig holds process-wide logging settings, independent of any
// single connection's per-port audit log.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SerialConnectionConfig is one entry under serial_connections.
type SerialConnectionConfig struct {
	Name        string              `mapstructure:"name" yaml:"name"`
	Port        string              `mapstructure:"port" yaml:"port"`
	BaudRate    int                 `mapstructure:"baud_rate" yaml:"baud_rate"`
	DataBits    int                 `mapstructure:"data_bits" yaml:"data_bits"`
	StopBits    int                 `mapstructure:"stop_bits" yaml:"stop_bits"`
	Parity      string              `mapstructure:"parity" yaml:"parity"`
	FlowControl string              `mapstructure:"flow_control" yaml:"flow_control"`
	Enabled     bool                `mapstructure:"enabled" yaml:"enabled"`
	Logging     ConnectionLogConfig `mapstructure:"logging" yaml:"logging"`
	Description string              `mapstructure:"description" yaml:"description"`
}

// ConnectionLogConfig is the per-connection audit log setting.
type ConnectionLogConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults and no
// connections configured.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ToPortConfig converts one YAML entry into the serial package's
// PortConfig, parsing and validating the string-typed enum fields.
func (c SerialConnectionConfig) ToPortConfig() (serial.PortConfig, error) {
	if !c.Enabled {
		// A disabled entry is never opened (spec.md §4.4, §8), so its enum
		// fields are not parsed and cannot fail validation here.
		return serial.PortConfig{Name: c.Name, Enabled: false}, nil
	}

	parity, err := serial.ParseParity(c.Parity)
	if err != nil {
		return serial.PortConfig{}, err
	}

	flowControl, err := serial.ParseFlowControl(c.FlowControl)
	if err != nil {
		return serial.PortConfig{}, err
	}

	stopBits, err := serial.ParseStopBits(c.StopBits)
	if err != nil {
		return serial.PortConfig{}, err
	}

	pc := serial.PortConfig{
		Name:           c.Name,
		DevicePath:     c.Port,
		BaudRate:       c.BaudRate,
		DataBits:       c.DataBits,
		StopBits:       stopBits,
		Parity:         parity,
		FlowControl:    flowControl,
		Enabled:        c.Enabled,
		LoggingEnabled: c.Logging.Enabled,
		LoggingPath:    c.Logging.Path,
		Description:    c.Description,
	}
	if err := pc.Validate(); err != nil {
		return serial.PortConfig{}, err
	}
	return pc, nil
}

// SetDefaults sets default values in viper, read before any config file is
// merged in.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("server.host", defaults.Server.Host)
	viper.SetDefault("server.port", defaults.Server.Port)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("serial_connections", []SerialConnectionConfig{})
}

// Load reads configuration from viper (already pointed at a file by
// InitViper or LoadFromFile) and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := InitViper(path); err != nil {
		return nil, err
	}
	return Load()
}

// LoadOrDefault loads configuration from file, or returns defaults if the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadFromFile(path)
}

// Validate enforces spec.md §6's two invariants: every connection name is
// unique and the server port is positive. Error messages match the wording
// spec.md §8's scenarios assert on. Per-connection field validation
// (baud rate, data bits, and so on) happens when the connection is actually
// opened, via serial.PortConfig.Validate — a disabled entry with malformed
// fields still loads cleanly, matching spec.md §8's "enabled=false" case.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("Server port must be greater than 0")
	}

	seen := make(map[string]bool, len(c.SerialConnections))
	for _, conn := range c.SerialConnections {
		if seen[conn.Name] {
			return fmt.Errorf("Duplicate connection name: %s", conn.Name)
		}
		seen[conn.Name] = true
	}

	return nil
}

// DefaultConfigPath returns the default configuration file path for the
// current OS.
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "serialmux", "config.yaml")
	case "darwin":
		return "/usr/local/etc/serialmux/config.yaml"
	default:
		return "/etc/serialmux/config.yaml"
	}
}

// UserConfigPath returns the user-specific configuration file path.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, ".serialmux", "config.yaml")
	default:
		return filepath.Join(home, ".config", "serialmux", "config.yaml")
	}
}

// InitViper initializes viper against configFile, or a default search path
// when configFile is empty, and loads SERIALMUX_* environment overrides.
func InitViper(configFile string) error {
	SetDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, _ := os.UserHomeDir()
		if home != "" {
			viper.AddConfigPath(filepath.Join(home, ".serialmux"))
			viper.AddConfigPath(filepath.Join(home, ".config", "serialmux"))
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/serialmux")

		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("SERIALMUX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}
