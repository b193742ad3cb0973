package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/mediavault/mediavault/internal/logger"
	backendbadger "github.com/mediavault/mediavault/pkg/backend/badger"
	backendfs "github.com/mediavault/mediavault/pkg/backend/fs"
	backendmemory "github.com/mediavault/mediavault/pkg/backend/memory"
	backends3 "github.com/mediavault/mediavault/pkg/backend/s3"
	"github.com/mediavault/mediavault/pkg/media"
)

// BuildBackends creates the configured storage backends, preserving
// list order: the first entry is the highest-priority backend for both
// replication and read fallback.
func BuildBackends(ctx context.Context, cfg *Config) ([]media.StorageBackend, error) {
	backends := make([]media.StorageBackend, 0, len(cfg.Backends))

	for i, bcfg := range cfg.Backends {
		logger.Debug("creating storage backend %d (type: %s)", i, bcfg.Type)

		b, err := buildBackend(ctx, bcfg, cfg.Media.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend %d (%s): %w", i, bcfg.Type, err)
		}

		logger.Info("storage backend %s initialized", b.Name())
		backends = append(backends, b)
	}

	return backends, nil
}

func buildBackend(ctx context.Context, cfg BackendConfig, localMediaPath string) (media.StorageBackend, error) {
	switch cfg.Type {
	case "filesystem":
		return buildFilesystemBackend(ctx, cfg, localMediaPath)
	case "s3":
		return buildS3Backend(ctx, cfg, localMediaPath)
	case "badger":
		return buildBadgerBackend(ctx, cfg, localMediaPath)
	case "memory":
		return backendmemory.New(backendmemory.Config{
			Name:           cfg.Name,
			LocalMediaPath: localMediaPath,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Type)
	}
}

func buildFilesystemBackend(ctx context.Context, cfg BackendConfig, localMediaPath string) (media.StorageBackend, error) {
	var opts struct {
		Path string `mapstructure:"path"`
	}
	if err := mapstructure.Decode(cfg.Filesystem, &opts); err != nil {
		return nil, fmt.Errorf("invalid filesystem backend config: %w", err)
	}

	return backendfs.New(ctx, backendfs.Config{
		Name:           cfg.Name,
		Path:           opts.Path,
		LocalMediaPath: localMediaPath,
	})
}

func buildS3Backend(ctx context.Context, cfg BackendConfig, localMediaPath string) (media.StorageBackend, error) {
	var opts struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}
	if err := mapstructure.Decode(cfg.S3, &opts); err != nil {
		return nil, fmt.Errorf("invalid s3 backend config: %w", err)
	}

	return backends3.New(ctx, backends3.Config{
		Name:            cfg.Name,
		Region:          opts.Region,
		Bucket:          opts.Bucket,
		KeyPrefix:       opts.KeyPrefix,
		Endpoint:        opts.Endpoint,
		AccessKeyID:     opts.AccessKeyID,
		SecretAccessKey: opts.SecretAccessKey,
		MaxRetries:      opts.MaxRetries,
		LocalMediaPath:  localMediaPath,
	})
}

func buildBadgerBackend(ctx context.Context, cfg BackendConfig, localMediaPath string) (media.StorageBackend, error) {
	var opts struct {
		Path       string `mapstructure:"path"`
		SyncWrites bool   `mapstructure:"sync_writes"`
	}
	if err := mapstructure.Decode(cfg.Badger, &opts); err != nil {
		return nil, fmt.Errorf("invalid badger backend config: %w", err)
	}

	return backendbadger.New(ctx, backendbadger.Config{
		Name:           cfg.Name,
		Path:           opts.Path,
		SyncWrites:     opts.SyncWrites,
		LocalMediaPath: localMediaPath,
	})
}
