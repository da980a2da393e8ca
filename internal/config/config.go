// Package config loads the configuration of the proxyfs command.
//
// Configuration sources (in order of precedence):
//  1. Command line flags bound with Load
//  2. Environment variables (PROXYFS_*)
//  3. Configuration file (YAML)
//  4. Default values
//
// Overlay Configuration Pattern:
// Each overlay type has its own option section (overlay.dir, overlay.temp,
// overlay.swap). Only the section matching overlay.type is decoded.
package config

import (
	"io/fs"
	"strings"

	"emperror.dev/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Overlay types.
const (
	OverlayMemory = "memory"
	OverlayTemp   = "temp"
	OverlayDir    = "dir"
	OverlaySwap   = "swap"
)

// Config is the complete proxyfs configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Backing is the read-only store
	Backing BackingConfig `mapstructure:"backing"`

	// Overlay selects the store receiving writes
	Overlay OverlayConfig `mapstructure:"overlay"`

	// Tombstones selects where removals are recorded
	Tombstones TombstonesConfig `mapstructure:"tombstones"`

	// Cache configures the backing lookup cache
	Cache CacheConfig `mapstructure:"cache"`

	// CopyBufferSize is the relocation buffer, as a human size ("32KiB")
	CopyBufferSize string `mapstructure:"copy_buffer_size" validate:"bytesize"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Valid values: debug, info, warn, error (case-insensitive, normalized to lowercase)
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR"`

	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// BackingConfig describes the backing store.
type BackingConfig struct {
	// Path is a directory or a .zip archive. Empty means an empty store.
	Path string `mapstructure:"path"`

	// Close hands the backing store to the overlay, which closes it on Close.
	// Otherwise the session closes it after the overlay.
	Close bool `mapstructure:"close"`
}

// OverlayConfig selects the overlay store.
//
// The Type field determines which overlay is used. Only the corresponding
// type-specific section is used.
type OverlayConfig struct {
	// Valid values: memory, temp, dir, swap
	Type string `mapstructure:"type" validate:"required,oneof=memory temp dir swap"`

	// Dir contains directory-specific options. Only used when Type = "dir"
	Dir map[string]any `mapstructure:"dir"`

	// Temp contains temporary-directory options. Only used when Type = "temp"
	Temp map[string]any `mapstructure:"temp"`

	// Swap contains swap options. Only used when Type = "swap"
	Swap map[string]any `mapstructure:"swap"`
}

// TombstonesConfig selects the tombstone set.
type TombstonesConfig struct {
	// Path is a badger directory. Empty keeps tombstones in memory.
	Path string `mapstructure:"path"`
}

// CacheConfig configures the backing lookup cache.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	TTL        string `mapstructure:"ttl"`
	MaxEntries int    `mapstructure:"max_entries" validate:"gte=0"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"backing":     "backing.path",
	"overlay-dir": "overlay.dir.path",
	"state":       "tombstones.path",
	"log-level":   "logging.level",
}

// Load loads configuration from file, environment, flags and defaults.
//
// An empty configPath or a missing file means defaults only. Flags listed in
// flagKeys override file and environment values when they are set.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}
	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// A directory given on the command line implies a directory overlay.
	if flags != nil && flags.Changed("overlay-dir") && !v.IsSet("overlay.type") {
		cfg.Overlay.Type = OverlayDir
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return &cfg, nil
}

// setupViper configures environment variable support.
// Example: PROXYFS_LOGGING_LEVEL=debug
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("PROXYFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about
	for _, key := range []string{
		"logging.level", "logging.format",
		"backing.path", "backing.close",
		"overlay.type", "overlay.dir.path",
		"overlay.temp.dir", "overlay.temp.prefix",
		"overlay.swap.dir", "overlay.swap.prefix", "overlay.swap.threshold",
		"tombstones.path",
		"cache.enabled", "cache.ttl", "cache.max_entries",
		"copy_buffer_size",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "cannot bind flag %s", name)
		}
	}
	return nil
}
