package config

import "strings"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults and explicit values are preserved.
// Overlay-specific defaults are handled when the overlay options are decoded.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyOverlayDefaults(&cfg.Overlay)

	if cfg.CopyBufferSize == "" {
		cfg.CopyBufferSize = "32KiB"
	}
	if cfg.Cache.TTL == "" {
		cfg.Cache.TTL = "5m"
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	cfg.Level = strings.ToLower(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
}

func applyOverlayDefaults(cfg *OverlayConfig) {
	if cfg.Type == "" {
		cfg.Type = OverlayMemory
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Dir == nil {
		cfg.Dir = make(map[string]any)
	}
	if cfg.Temp == nil {
		cfg.Temp = make(map[string]any)
	}
	if cfg.Swap == nil {
		cfg.Swap = make(map[string]any)
	}
}
