// Package memory implements an in-memory storage backend.
//
// Contents vanish when the process exits, so it is only useful for
// tests and local experiments where a real replication target would be
// noise. It is also the reference for the backend contract suite.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/mediavault/mediavault/pkg/backend"
	"github.com/mediavault/mediavault/pkg/media"
)

// MemoryBackend keeps objects in a map keyed by relative path.
type MemoryBackend struct {
	name                string
	localMediaDirectory string

	mu      sync.RWMutex
	objects map[string][]byte
}

// Config configures a MemoryBackend.
type Config struct {
	// Name identifies the backend in logs and metrics.
	Name string

	// LocalMediaPath is the coordinator's local cache directory, the
	// source for uploads.
	LocalMediaPath string
}

// New creates an empty in-memory backend.
func New(cfg Config) *MemoryBackend {
	name := cfg.Name
	if name == "" {
		name = "memory"
	}
	return &MemoryBackend{
		name:                name,
		localMediaDirectory: cfg.LocalMediaPath,
		objects:             make(map[string][]byte),
	}
}

func (b *MemoryBackend) Name() string {
	return b.name
}

// Store reads the local cache file at relPath into memory.
func (b *MemoryBackend) Store(ctx context.Context, relPath string, _ *media.FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := backend.OpenLocalFile(b.localMediaDirectory, relPath)
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[relPath] = data
	return nil
}

// Fetch returns a Responder over a snapshot of the stored bytes, or
// media.ErrNotInBackend on a miss.
func (b *MemoryBackend) Fetch(ctx context.Context, relPath string, _ *media.FileInfo) (media.Responder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	data, ok := b.objects[relPath]
	b.mu.RUnlock()
	if !ok {
		return nil, media.ErrNotInBackend
	}

	return media.NewStreamResponder(io.NopCloser(bytes.NewReader(data))), nil
}

// Put seeds an object directly, bypassing the local cache. Test helper.
func (b *MemoryBackend) Put(relPath string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[relPath] = append([]byte(nil), data...)
}

// Get returns a stored object and whether it exists. Test helper.
func (b *MemoryBackend) Get(relPath string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[relPath]
	return data, ok
}

// Len reports the number of stored objects. Test helper.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
