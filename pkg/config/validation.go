package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags plus custom
// rules that cannot be expressed in tags.
//
// Validation accepts both uppercase and lowercase log levels; the
// logger normalizes them.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Backend names must be unique: they key log lines and metrics.
	names := make(map[string]bool)
	for i, b := range cfg.Backends {
		name := b.Name
		if name == "" {
			name = b.Type
		}
		if names[name] {
			return fmt.Errorf("backends[%d]: duplicate backend name %q", i, name)
		}
		names[name] = true
	}

	for i, b := range cfg.Backends {
		switch b.Type {
		case "filesystem":
			if b.Filesystem == nil {
				return fmt.Errorf("backends[%d]: filesystem backend requires a filesystem section", i)
			}
		case "s3":
			if b.S3 == nil {
				return fmt.Errorf("backends[%d]: s3 backend requires an s3 section", i)
			}
		case "badger":
			if b.Badger == nil {
				return fmt.Errorf("backends[%d]: badger backend requires a badger section", i)
			}
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
