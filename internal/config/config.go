package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Backend       BackendConfig       `toml:"backend"`
	Storage       StorageConfig       `toml:"storage"`
	Pipeline      PipelineConfig      `toml:"pipeline"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// BackendConfig holds pipeline backend connection settings
type BackendConfig struct {
	URL                 string `toml:"url"`
	StartTimeoutSeconds int    `toml:"start_timeout_seconds"`
}

// StorageConfig holds local file locations
type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
	SettingsPath string `toml:"settings_path"`
}

// PipelineConfig holds run behavior settings
type PipelineConfig struct {
	// StepDelayMillis paces the locally simulated steps so progress
	// stays readable. The streamed path ignores it.
	StepDelayMillis int `toml:"step_delay_millis"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Backend: BackendConfig{
			URL:                 "http://127.0.0.1:8000",
			StartTimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(home, ".ideaforge", "history.db"),
			SettingsPath: filepath.Join(home, ".ideaforge", "settings.toml"),
		},
		Pipeline: PipelineConfig{
			StepDelayMillis: 1200,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
	}
}

// StartTimeout returns the start timeout as a duration.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.Backend.StartTimeoutSeconds) * time.Second
}

// StepDelay returns the local step pacing as a duration.
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Pipeline.StepDelayMillis) * time.Millisecond
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.Storage.DatabasePath = ExpandPath(cfg.Storage.DatabasePath)
	cfg.Storage.SettingsPath = ExpandPath(cfg.Storage.SettingsPath)

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ideaforge", "config.toml")
}
