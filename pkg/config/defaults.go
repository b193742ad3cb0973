package config

import (
	"github.com/spf13/viper"
)

// setDefaults seeds viper with defaults for every field a minimal
// deployment can leave unset. Explicit file or environment values win.
func setDefaults(v *viper.Viper) {
	// Logging
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	// Server
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.port", 8448)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_upload_bytes", int64(50*1024*1024))
	v.SetDefault("server.upload_rate_limit.requests_per_second", uint(0))
	v.SetDefault("server.upload_rate_limit.burst", uint(10))

	// Media
	v.SetDefault("media.path", "/var/lib/mediavault/media")
	v.SetDefault("media.copy_workers", 4)

	// Metrics
	v.SetDefault("metrics.enabled", false)
}
