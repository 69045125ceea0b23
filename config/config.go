// Package config provides configuration management for Voicelink.
// It handles loading, saving, and managing client settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/voicelink/common"
)

// Config represents the client configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// AutoReconnect schedules a reconnect after an unexpected disconnect.
	AutoReconnect bool `yaml:"auto_reconnect"`
	// ReconnectDelay is how long to wait before that reconnect.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	// DefaultUsername is used when a server address carries no username.
	DefaultUsername string `yaml:"default_username"`
	// RememberPasswords stores server passwords in the keyring after a
	// successful connection. Off unless the user opts in.
	RememberPasswords bool `yaml:"remember_passwords"`
	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`
	// SelfMute and SelfDeaf are the user's audio preferences, re-sent on connect.
	SelfMute bool `yaml:"self_mute"`
	SelfDeaf bool `yaml:"self_deaf"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
	// TrustDB overrides the certificate trust database path.
	TrustDB string `yaml:"trust_db,omitempty"`

	path string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AutoReconnect:     true,
		ReconnectDelay:    common.ReconnectDelay,
		RememberPasswords: false,
		ShowNotifications: true,
		LogLevel:          common.LogLevelInfo,
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration stored at path, writing defaults there
// when the file is missing.
func LoadFrom(path string) (*Config, error) {
	if !common.FileExists(path) {
		cfg := DefaultConfig()
		cfg.path = path
		if err := cfg.Save(); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening configuration: %v", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // reject unknown fields

	config := DefaultConfig()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%w: error parsing configuration: %v", common.ErrConfigLoad, err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.path = path
	return config, nil
}

// validate normalises out-of-range values to their defaults.
func (c *Config) validate() error {
	switch c.LogLevel {
	case common.LogLevelDebug, common.LogLevelInfo, common.LogLevelWarn, common.LogLevelError:
	default:
		c.LogLevel = common.LogLevelInfo
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = common.ReconnectDelay
	}
	// deafened implies muted
	if c.SelfDeaf {
		c.SelfMute = true
	}
	return nil
}

// Path returns the file the configuration was loaded from or will be saved to.
func (c *Config) Path() string {
	return c.path
}

// Save saves the configuration to the file it was loaded from, or to the
// default location.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		var err error
		path, err = getConfigPath()
		if err != nil {
			return err
		}
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("%w: error creating config directory: %v", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %v", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("%w: error saving configuration: %v", common.ErrConfigSave, err)
	}

	c.path = path
	return nil
}

func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", common.ConfigDirName, common.ConfigFileName), nil
}
