package media

import (
	"context"
	"errors"
)

// StorageBackend is a pluggable remote store for media objects.
//
// The coordinator holds an ordered, process-lifetime list of backends.
// The order is the priority used for replication on write (every
// backend is written, in order) and for fallback on read (first hit
// wins). Implementations live in pkg/backend.
//
// Backends are addressed with the same relative paths the FilePaths
// resolver produces for the local cache, so a backend must accept paths
// that do not exist locally but are computed identically.
type StorageBackend interface {
	// Store uploads the local file at relPath (relative to the local
	// media directory) under the same relative key.
	Store(ctx context.Context, relPath string, info *FileInfo) error

	// Fetch returns a Responder streaming the object at relPath, or
	// ErrNotInBackend if this backend does not hold it. The caller owns
	// the returned Responder and must close it.
	Fetch(ctx context.Context, relPath string, info *FileInfo) (Responder, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}

// ErrNotInBackend signals a clean miss from StorageBackend.Fetch, as
// opposed to a backend failure. Misses move fallback on to the next
// backend; only total exhaustion becomes ErrMediaNotFound.
var ErrNotInBackend = errors.New("object not present in backend")
