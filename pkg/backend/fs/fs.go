// Package fs implements a directory-tree storage backend.
//
// It mirrors the local media layout under a second base path, which is
// typically a slower or larger volume (network mount, archive disk).
// This is the reference backend: anything the interface promises can be
// verified against it with plain filesystem checks.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mediavault/mediavault/pkg/backend"
	"github.com/mediavault/mediavault/pkg/media"
)

// FSBackend stores media under basePath using the same relative paths
// as the local cache.
//
// Thread safety: operations on distinct paths are independent;
// concurrent stores to the same path follow last-write-wins, same as
// the local cache.
type FSBackend struct {
	name                string
	basePath            string
	localMediaDirectory string
}

// Config configures an FSBackend.
type Config struct {
	// Name identifies the backend in logs and metrics.
	Name string

	// Path is the backend's own base directory.
	Path string

	// LocalMediaPath is the coordinator's local cache directory, the
	// source for uploads.
	LocalMediaPath string
}

// New creates the backend, creating its base directory if needed.
func New(ctx context.Context, cfg Config) (*FSBackend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("filesystem backend: path is required")
	}
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backend directory: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = "filesystem"
	}
	return &FSBackend{
		name:                name,
		basePath:            cfg.Path,
		localMediaDirectory: cfg.LocalMediaPath,
	}, nil
}

func (b *FSBackend) Name() string {
	return b.name
}

// Store copies the local cache file at relPath under the backend's base
// directory. The copy is written to a temp file first and renamed into
// place so readers never observe a partial object.
func (b *FSBackend) Store(ctx context.Context, relPath string, _ *media.FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := backend.OpenLocalFile(b.localMediaDirectory, relPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst := filepath.Join(b.basePath, relPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create backend directories: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to copy %s to backend: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finish backend copy of %s: %w", relPath, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", relPath, err)
	}
	return nil
}

// Fetch opens the object at relPath, returning media.ErrNotInBackend on
// a clean miss.
func (b *FSBackend) Fetch(ctx context.Context, relPath string, _ *media.FileInfo) (media.Responder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(b.basePath, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, media.ErrNotInBackend
		}
		return nil, fmt.Errorf("failed to open backend file %s: %w", relPath, err)
	}
	return media.NewFileResponder(f), nil
}
