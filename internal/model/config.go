package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// IMAPConfig holds the mail server settings used for every sync session.
type IMAPConfig struct {
	// Host is the IMAP server hostname.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the IMAP server port (993 for implicit TLS).
	Port string `mapstructure:"port" yaml:"port"`

	// TLS selects implicit TLS; when false the connection starts in
	// plaintext and upgrades via STARTTLS.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// ConnectTimeoutSec bounds the TCP+TLS dial.
	ConnectTimeoutSec int `mapstructure:"connect_timeout_sec" yaml:"connect_timeout_sec"`
}

// ConnectTimeout returns the dial timeout as a duration.
func (c IMAPConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

// SyncConfig holds the scheduling settings for mailbox synchronization.
type SyncConfig struct {
	// Workers is the fixed size of the sync worker pool.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// FetchCount is how many messages to take from the tail of the
	// inbox on each sync.
	FetchCount int `mapstructure:"fetch_count" yaml:"fetch_count"`

	// PollIntervalSec is how often the daemon re-syncs all users.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// PollInterval returns the daemon poll interval as a duration.
func (c SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP IMAPConfig `mapstructure:"imap" yaml:"imap"`
	Sync SyncConfig `mapstructure:"sync" yaml:"sync"`

	// DatabasePath is the SQLite database file location.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// ClassifierModelPath is where the trained classifier model is
	// persisted as JSON.
	ClassifierModelPath string `mapstructure:"classifier_model_path" yaml:"classifier_model_path"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/emailorganizer/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "emailorganizer", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		IMAP: IMAPConfig{
			Host:              "imap.gmail.com",
			Port:              "993",
			TLS:               true,
			ConnectTimeoutSec: 30,
		},
		Sync: SyncConfig{
			Workers:         5,
			FetchCount:      50,
			PollIntervalSec: 300,
		},
		DatabasePath:        filepath.Join("data", "emails.db"),
		ClassifierModelPath: filepath.Join("models", "classifier.json"),
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.connect_timeout_sec", 30)
	v.SetDefault("sync.workers", 5)
	v.SetDefault("sync.fetch_count", 50)
	v.SetDefault("sync.poll_interval_sec", 300)
	v.SetDefault("database_path", filepath.Join("data", "emails.db"))
	v.SetDefault("classifier_model_path", filepath.Join("models", "classifier.json"))

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

	if cfg.Sync.Workers < 1 {
		cfg.Sync.Workers = 5
	}
	if cfg.Sync.FetchCount < 1 {
		cfg.Sync.FetchCount = 50
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

	v.Set("imap", cfg.IMAP)
	v.Set("sync", cfg.Sync)
	v.Set("database_path", cfg.DatabasePath)
	v.Set("classifier_model_path", cfg.ClassifierModelPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
