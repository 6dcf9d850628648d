package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// APIConfig holds connection settings for the bus service backend.
type APIConfig struct {
	// BaseURL is the root URL of the bus service HTTP API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// AuthProviderConfig holds connection settings for the hosted auth and
// realtime provider.
type AuthProviderConfig struct {
	// URL is the root URL of the provider project.
	URL string `mapstructure:"url" yaml:"url"`

	// AnonKey is the provider's public client key.
	AnonKey string `mapstructure:"anon_key" yaml:"anon_key"`
}

// SyncConfig holds refresh cadence settings.
type SyncConfig struct {
	// ETARefreshSec is how often (in seconds) the ETA view refreshes.
	ETARefreshSec int `mapstructure:"eta_refresh_sec" yaml:"eta_refresh_sec"`

	// NotificationMinIntervalSec is the minimum elapsed time between two
	// non-forced notification fetches.
	NotificationMinIntervalSec int `mapstructure:"notification_min_interval_sec" yaml:"notification_min_interval_sec"`

	// RecipientOverride, when set, watches that recipient's notifications
	// even while signed out. Useful for shared terminal displays.
	RecipientOverride string `mapstructure:"recipient_override" yaml:"recipient_override"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`

	// Mute disables the audible cue for new notifications.
	Mute bool `mapstructure:"mute" yaml:"mute"`

	// LogLevel sets the minimum level written to the log file
	// (trace, debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig          `mapstructure:"api" yaml:"api"`
	Auth    AuthProviderConfig `mapstructure:"auth" yaml:"auth"`
	Sync    SyncConfig         `mapstructure:"sync" yaml:"sync"`
	Display DisplayConfig      `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/buswatch/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "buswatch", "config.yaml")
}

// DefaultDataDir returns the directory where the local database and log
// file live, ~/.local/share/buswatch.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "buswatch")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL: "http://localhost:5000/api",
		},
		Sync: SyncConfig{
			ETARefreshSec:              30,
			NotificationMinIntervalSec: 30,
		},
		Display: DisplayConfig{
			Theme:    "default",
			LogLevel: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", "http://localhost:5000/api")
	v.SetDefault("sync.eta_refresh_sec", 30)
	v.SetDefault("sync.notification_min_interval_sec", 30)
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Sync.ETARefreshSec <= 0 {
		cfg.Sync.ETARefreshSec = 30
	}
	if cfg.Sync.NotificationMinIntervalSec <= 0 {
		cfg.Sync.NotificationMinIntervalSec = 30
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("auth", cfg.Auth)
	v.Set("sync", cfg.Sync)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
