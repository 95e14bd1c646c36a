// Package config loads optional file-based defaults for the CLI. Flags
// always win over the file; the file wins over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// DefaultFileName is probed in the working directory when no --config flag
// is given.
const DefaultFileName = "guarder.toml"

// Config carries the tunables a file may provide.
type Config struct {
	RestartIntervalSec int    `mapstructure:"restart_interval"`
	MaxLogSizeMiB      int64  `mapstructure:"max_log_size_mib"`
	HistoryDSN         string `mapstructure:"history_dsn"` // "off" disables history
	LogLevel           string `mapstructure:"log_level"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		RestartIntervalSec: 5,
		MaxLogSizeMiB:      10,
		LogLevel:           "info",
	}
}

// Load reads path (TOML) over the defaults. An empty path probes
// DefaultFileName and silently falls back to defaults when it does not
// exist; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("restart_interval", cfg.RestartIntervalSec)
	v.SetDefault("max_log_size_mib", cfg.MaxLogSizeMiB)
	v.SetDefault("log_level", cfg.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.RestartIntervalSec <= 0 {
		return Config{}, fmt.Errorf("config %q: restart_interval must be positive", path)
	}
	if cfg.MaxLogSizeMiB <= 0 {
		return Config{}, fmt.Errorf("config %q: max_log_size_mib must be positive", path)
	}
	return cfg, nil
}
