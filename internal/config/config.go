// Package config loads taskmirror configuration from a YAML file and the
// environment. Values are explicit: callers pass the resulting Config into
// constructors rather than reading ambient globals.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting.
type Config struct {
	// RemoteToken is the API bearer token for the remote source.
	RemoteToken string `mapstructure:"remote_token"`

	// RemoteBaseURL overrides the remote API endpoint (empty = production).
	RemoteBaseURL string `mapstructure:"remote_base_url"`

	// RemotePageSize bounds one listing request.
	RemotePageSize int `mapstructure:"remote_page_size"`

	// DatabasePath is the SQLite mirror file.
	DatabasePath string `mapstructure:"database_path"`

	// LogFilePath, when set, directs logs to a rotating file instead of stderr.
	LogFilePath string `mapstructure:"log_file_path"`

	// ListenAddr is the HTTP server address for `tm serve`.
	ListenAddr string `mapstructure:"listen_addr"`

	// SyncInterval is the daemon's period between syncs.
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// Default returns sensible defaults. The token has no default and must be
// provided by file or environment.
func Default() *Config {
	return &Config{
		RemotePageSize: 200,
		DatabasePath:   ".taskmirror/mirror.db",
		ListenAddr:     ":8080",
		SyncInterval:   5 * time.Minute,
	}
}

// Load reads configuration from the given file path (optional) merged with
// TM_-prefixed environment variables (e.g. TM_REMOTE_TOKEN).
//
// When path is empty, a taskmirror.yaml in the working directory is used if
// present; a missing file is not an error, env and defaults still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("remote_page_size", def.RemotePageSize)
	v.SetDefault("database_path", def.DatabasePath)
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("sync_interval", def.SyncInterval)

	v.SetEnvPrefix("TM")
	v.AutomaticEnv()

	// AutomaticEnv alone is not enough: Unmarshal only walks keys that are
	// registered via defaults, the config file, or an explicit binding.
	// Keys without defaults (the token above all) must be bound by hand or
	// an env-only value is lost.
	for _, key := range []string{
		"remote_token",
		"remote_base_url",
		"remote_page_size",
		"database_path",
		"log_file_path",
		"listen_addr",
		"sync_interval",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("taskmirror")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that every entry point needs.
func (c *Config) Validate() error {
	if c.RemoteToken == "" {
		return fmt.Errorf("remote_token is required (set TM_REMOTE_TOKEN or the config file)")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive (got %v)", c.SyncInterval)
	}
	return nil
}
