// Package backend contains the storage backend implementations that
// replicate and serve media objects for the coordinator in pkg/media.
//
// Each implementation satisfies media.StorageBackend. Backends source
// uploads from the freshly written local cache file: the coordinator
// always completes (and spam-checks) the local write before any
// backend's Store is called, so reading back from the local path is
// safe by the time a backend sees it.
package backend

import (
	"fmt"
	"os"
	"path/filepath"
)

// OpenLocalFile opens the local cache copy of relPath for a backend to
// upload. Shared by every implementation that sources from disk.
func OpenLocalFile(localMediaDirectory, relPath string) (*os.File, error) {
	fname := filepath.Join(localMediaDirectory, relPath)
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to open local media file %s: %w", fname, err)
	}
	return f, nil
}
