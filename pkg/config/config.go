// Package config loads and validates the MediaVault configuration and
// builds the configured storage backend list.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (MEDIAVAULT_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Backend configuration follows a type-dispatch pattern: each list
// entry names a Type, and only the matching type-specific section of
// that entry is decoded and handed to the backend's constructor. The
// order of the list is the replication and read-fallback priority and
// is preserved exactly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete MediaVault configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains settings for the HTTP surface.
	Server ServerConfig `mapstructure:"server"`

	// Media configures the local media cache and the coordinator.
	Media MediaConfig `mapstructure:"media"`

	// Backends is the ordered list of storage backends. May be empty,
	// in which case media lives only in the local cache.
	Backends []BackendConfig `mapstructure:"backends" validate:"dive"`

	// Metrics toggles Prometheus metrics collection.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format selects "text" or "json" output.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is "stdout", "stderr" or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains settings for the HTTP surface.
type ServerConfig struct {
	// BindAddress is the listen address, e.g. "0.0.0.0".
	BindAddress string `mapstructure:"bind_address" validate:"required"`

	// Port is the listen port.
	Port int `mapstructure:"port" validate:"required,gt=0,lte=65535"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// MaxUploadBytes caps a single upload. 0 means unlimited.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"gte=0"`

	// UploadRateLimit throttles upload requests.
	UploadRateLimit RateLimitConfig `mapstructure:"upload_rate_limit"`
}

// RateLimitConfig configures a token-bucket limit.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. 0 disables limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the bucket capacity.
	Burst uint `mapstructure:"burst"`
}

// MediaConfig configures the local media cache and the coordinator.
type MediaConfig struct {
	// Path is the local media cache base directory.
	Path string `mapstructure:"path" validate:"required"`

	// CopyWorkers bounds concurrent blocking disk copies. 0 selects
	// the built-in default.
	CopyWorkers int `mapstructure:"copy_workers" validate:"gte=0"`
}

// BackendConfig is one entry of the ordered backend list.
type BackendConfig struct {
	// Name identifies the backend in logs and metrics. Defaults to the
	// type name.
	Name string `mapstructure:"name"`

	// Type selects the implementation: filesystem, s3, badger, memory.
	Type string `mapstructure:"type" validate:"required,oneof=filesystem s3 badger memory"`

	// Filesystem holds options for Type == "filesystem".
	Filesystem map[string]any `mapstructure:"filesystem"`

	// S3 holds options for Type == "s3".
	S3 map[string]any `mapstructure:"s3"`

	// Badger holds options for Type == "badger".
	Badger map[string]any `mapstructure:"badger"`
}

// MetricsConfig toggles metrics collection.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from the given file path, applying defaults
// and environment overrides. A missing file is not an error; defaults
// and environment variables alone then drive the process.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("MEDIAVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
