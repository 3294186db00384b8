// Package config provides configuration loading and management for the attendance bridge.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variables consumed by the bridge
const EnvPrefix = "PUNCHBRIDGE"

// Defaults for device access policy. These are policy knobs, not derived
// values, and may be overridden in the config file.
const (
	// DefaultConnectTimeout bounds the TCP connect phase to the terminal
	DefaultConnectTimeout = 10 * time.Second

	// DefaultCooldown is the idle window imposed after any device failure
	DefaultCooldown = 15 * time.Second

	// DefaultStuckThreshold is how long a busy flag may stay set before a
	// new request is allowed to reclaim the device
	DefaultStuckThreshold = 40 * time.Second

	// DefaultFireAt is the local wall-clock instant of the daily sync
	DefaultFireAt = "00:05"

	// DefaultStateDir is where scheduler state is persisted
	DefaultStateDir = "./data"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Device holds the terminal connection settings
	Device DeviceConfig `yaml:"device"`

	// Cloud holds the HR endpoint delivery settings
	Cloud CloudConfig `yaml:"cloud"`

	// Sync holds the daily scheduler settings
	Sync SyncConfig `yaml:"sync,omitempty"`

	// StateDir is the directory where scheduler state is persisted
	StateDir string `yaml:"stateDir,omitempty"`
}

// DeviceConfig defines the attendance terminal connection settings.
// Host and Port are runtime-mutable through the API.
type DeviceConfig struct {
	// Host is the terminal hostname or IP address
	Host string `yaml:"host"`

	// Port is the terminal TCP port
	Port int `yaml:"port"`

	// ConnectTimeout bounds the connect phase (e.g. "10s")
	ConnectTimeout string `yaml:"connectTimeout,omitempty"`

	// Cooldown is the enforced idle window after any device failure (e.g. "15s")
	Cooldown string `yaml:"cooldown,omitempty"`

	// StuckThreshold is the busy-flag age after which a session is
	// considered stuck and reclaimed (e.g. "40s")
	StuckThreshold string `yaml:"stuckThreshold,omitempty"`
}

// CloudConfig defines the HR cloud endpoint settings
type CloudConfig struct {
	// Hostname is the logical HTTPS hostname of the HR endpoint
	Hostname string `yaml:"hostname"`

	// FallbackIP is the pinned IP address used when hostname-based
	// delivery fails at the transport level
	FallbackIP string `yaml:"fallbackIP,omitempty"`

	// Path is the fixed POST path for daily records
	Path string `yaml:"path"`
}

// SyncConfig defines the daily sync scheduler settings
type SyncConfig struct {
	// Enabled controls whether the daily sync fires. Defaults to true.
	// Runtime-mutable through the API; the persisted value wins over this
	// one once the scheduler has run at least once.
	Enabled *bool `yaml:"enabled,omitempty"`

	// FireAt is the local wall-clock time of the daily fire, "HH:MM"
	FireAt string `yaml:"fireAt,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in defaults for omitted fields
func (c *Config) applyDefaults() {
	if c.Device.ConnectTimeout == "" {
		c.Device.ConnectTimeout = DefaultConnectTimeout.String()
	}
	if c.Device.Cooldown == "" {
		c.Device.Cooldown = DefaultCooldown.String()
	}
	if c.Device.StuckThreshold == "" {
		c.Device.StuckThreshold = DefaultStuckThreshold.String()
	}
	if c.Sync.FireAt == "" {
		c.Sync.FireAt = DefaultFireAt
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Device.Host == "" {
		return fmt.Errorf("device.host is required")
	}
	if c.Device.Port <= 0 || c.Device.Port > 65535 {
		return fmt.Errorf("device.port must be in range 1-65535, got %d", c.Device.Port)
	}
	for _, d := range []struct {
		name  string
		value string
	}{
		{"device.connectTimeout", c.Device.ConnectTimeout},
		{"device.cooldown", c.Device.Cooldown},
		{"device.stuckThreshold", c.Device.StuckThreshold},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '15s'): %w", d.name, err)
		}
	}

	if c.Cloud.Hostname == "" {
		return fmt.Errorf("cloud.hostname is required")
	}
	if c.Cloud.Path == "" {
		return fmt.Errorf("cloud.path is required")
	}
	if !strings.HasPrefix(c.Cloud.Path, "/") {
		return fmt.Errorf("cloud.path must start with '/', got %s", c.Cloud.Path)
	}
	if c.Cloud.FallbackIP != "" {
		if net.ParseIP(c.Cloud.FallbackIP) == nil {
			return fmt.Errorf("cloud.fallbackIP must be a valid IP address, got %s", c.Cloud.FallbackIP)
		}
	}

	if err := validateFireAt(c.Sync.FireAt); err != nil {
		return err
	}

	return nil
}

// validateFireAt checks the "HH:MM" daily fire instant
func validateFireAt(value string) error {
	if _, err := time.Parse("15:04", value); err != nil {
		return fmt.Errorf("sync.fireAt must be a wall-clock time 'HH:MM', got %s", value)
	}
	return nil
}

// ConnectTimeoutDuration returns the parsed connect timeout
func (d *DeviceConfig) ConnectTimeoutDuration() time.Duration {
	return parseDurationOr(d.ConnectTimeout, DefaultConnectTimeout)
}

// CooldownDuration returns the parsed cooldown window
func (d *DeviceConfig) CooldownDuration() time.Duration {
	return parseDurationOr(d.Cooldown, DefaultCooldown)
}

// StuckThresholdDuration returns the parsed stuck-session threshold
func (d *DeviceConfig) StuckThresholdDuration() time.Duration {
	return parseDurationOr(d.StuckThreshold, DefaultStuckThreshold)
}

// SyncEnabled returns the configured enabled flag, defaulting to true
func (s *SyncConfig) SyncEnabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
