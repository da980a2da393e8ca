package config

import (
	"time"

	"emperror.dev/errors"
	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("bytesize", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, err := humanize.ParseBytes(s)
		return err == nil
	})
}

// Validate validates the configuration using struct tags and custom rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	switch cfg.Overlay.Type {
	case OverlayDir:
		opts, err := DecodeDirOptions(cfg.Overlay.Dir)
		if err != nil {
			return err
		}
		if opts.Path == "" {
			return errors.New("overlay.dir.path: required when overlay.type is dir")
		}
	case OverlayTemp:
		if _, err := DecodeTempOptions(cfg.Overlay.Temp); err != nil {
			return err
		}
	case OverlaySwap:
		if _, err := DecodeSwapOptions(cfg.Overlay.Swap); err != nil {
			return err
		}
	}

	if cfg.Tombstones.Path != "" && cfg.Overlay.Type != OverlayDir {
		return errors.Errorf("tombstones.path: persistent tombstones need a dir overlay, not %s", cfg.Overlay.Type)
	}

	if cfg.Cache.Enabled {
		if _, err := time.ParseDuration(cfg.Cache.TTL); err != nil {
			return errors.Wrapf(err, "cache.ttl: invalid duration %q", cfg.Cache.TTL)
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return errors.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
