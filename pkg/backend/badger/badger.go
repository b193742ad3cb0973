// Package badger implements an embedded BadgerDB storage backend.
//
// It exists for single-node deployments that want a replication target
// surviving local-cache eviction without running an object store: media
// blobs live in a Badger value log next to the process. Keys are the
// relative media paths under a "b:" prefix.
//
// Objects are held in memory while being read or written, so this
// backend suits media-sized blobs (megabytes), not arbitrary payloads.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/mediavault/mediavault/pkg/backend"
	"github.com/mediavault/mediavault/pkg/media"
)

// keyPrefix namespaces media blobs within the database so future data
// types can share it without collisions.
const keyPrefix = "b:"

// BadgerBackend stores media blobs in an embedded BadgerDB.
//
// Thread safety: BadgerDB transactions provide isolation; concurrent
// stores to the same key are last-write-wins.
type BadgerBackend struct {
	name                string
	db                  *badger.DB
	localMediaDirectory string
}

// Config configures a BadgerBackend.
type Config struct {
	// Name identifies the backend in logs and metrics.
	Name string

	// Path is the database directory. Required.
	Path string

	// SyncWrites forces fsync on every commit. Slower, but a crash
	// never loses an acknowledged replication.
	SyncWrites bool

	// LocalMediaPath is the coordinator's local cache directory, the
	// source for uploads.
	LocalMediaPath string
}

// New opens (or creates) the database at cfg.Path.
func New(ctx context.Context, cfg Config) (*BadgerBackend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("badger backend: path is required")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = "badger"
	}
	return &BadgerBackend{
		name:                name,
		db:                  db,
		localMediaDirectory: cfg.LocalMediaPath,
	}, nil
}

func (b *BadgerBackend) Name() string {
	return b.name
}

// Close releases the database. Call once when shutting down.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func blobKey(relPath string) []byte {
	return []byte(keyPrefix + relPath)
}

// Store reads the local cache file at relPath and writes it as a single
// value under the blob key.
func (b *BadgerBackend) Store(ctx context.Context, relPath string, _ *media.FileInfo) error {
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
		return fmt.Errorf("failed to read local media file %s: %w", relPath, err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(relPath), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store %s in badger: %w", relPath, err)
	}
	return nil
}

// Fetch copies the blob out of the database and returns a Responder
// over the copy, or media.ErrNotInBackend on a clean miss.
func (b *BadgerBackend) Fetch(ctx context.Context, relPath string, _ *media.FileInfo) (media.Responder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(relPath))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, media.ErrNotInBackend
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from badger: %w", relPath, err)
	}

	return media.NewStreamResponder(io.NopCloser(bytes.NewReader(data))), nil
}
