package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mediavault/mediavault/internal/copier"
	"github.com/mediavault/mediavault/internal/logger"
)

// MediaStorage coordinates storing and fetching media across the local
// on-disk cache and the configured storage backends.
//
// Writes go to the local cache first, pass the spam gate, and are then
// replicated to every backend in priority order. Reads consult the
// local cache (including the legacy remote-thumbnail path) before
// falling back to backends in the same order. The backend list and
// local directory are fixed for the lifetime of the process.
//
// Operations on distinct descriptors are independent; operations on the
// same descriptor are not serialized here, so two concurrent writers to
// one descriptor race with last-write-wins semantics, matching the
// behavior this coordinator was modeled on.
type MediaStorage struct {
	localMediaDirectory string
	paths               FilePaths
	backends            []StorageBackend
	spamChecker         SpamChecker
	pool                *copier.Pool
	metrics             Metrics
}

// Options configures optional collaborators of MediaStorage.
type Options struct {
	// SpamChecker gates persistence. Nil means accept everything.
	SpamChecker SpamChecker

	// CopyWorkers bounds concurrent blocking disk copies. Non-positive
	// selects copier.DefaultWorkers.
	CopyWorkers int

	// Metrics receives operation observations. Nil disables them.
	Metrics Metrics
}

// NewMediaStorage creates a coordinator over localMediaDirectory and
// the given backend list. The backend order is the replication and
// fallback priority and must not change afterwards.
func NewMediaStorage(localMediaDirectory string, backends []StorageBackend, opts Options) (*MediaStorage, error) {
	if localMediaDirectory == "" {
		return nil, fmt.Errorf("local media directory is required")
	}
	if err := os.MkdirAll(localMediaDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	checker := opts.SpamChecker
	if checker == nil {
		checker = NoopSpamChecker{}
	}
	var m Metrics = opts.Metrics
	if m == nil {
		m = noopMetrics{}
	}

	return &MediaStorage{
		localMediaDirectory: localMediaDirectory,
		paths:               NewFilePaths(),
		backends:            backends,
		spamChecker:         checker,
		pool:                copier.NewPool(opts.CopyWorkers),
		metrics:             m,
	}, nil
}

// StoreFile writes source into the local media cache under info's path
// and replicates it to every configured backend.
//
// The source is rewound to its beginning before copying. Returns the
// absolute local path on success. On any failure, including a spam
// rejection, the local file is removed and the original error is
// returned.
func (ms *MediaStorage) StoreFile(ctx context.Context, source io.ReadSeeker, info *FileInfo) (fname string, err error) {
	start := time.Now()
	defer func() {
		ms.metrics.ObserveOperation("store_file", time.Since(start), err)
	}()

	fname, err = ms.StoreInto(ctx, info, func(f io.Writer) error {
		n, cerr := ms.pool.CopyFrom(ctx, f, source)
		ms.metrics.RecordBytes("write", n)
		return cerr
	})
	return fname, err
}

// StoreInto resolves info's local path, creates parent directories,
// opens the destination file and hands it to write. When write returns
// nil the file is closed, checked for spam and replicated to each
// backend in priority order.
//
// Cleanup runs on every failure path: if write fails, the spam check
// rejects, or any backend store fails, the local file is deleted
// (best-effort; a failed delete never masks the original error) and the
// original error is returned. A descriptor is therefore never left with
// a local file that did not pass the spam check.
func (ms *MediaStorage) StoreInto(ctx context.Context, info *FileInfo, write func(io.Writer) error) (fname string, err error) {
	path, err := ms.paths.RelativePath(info)
	if err != nil {
		return "", err
	}
	// Held in a local rather than the named return: failure paths zero
	// the return value, and the cleanup defer must still see the path.
	absPath := filepath.Join(ms.localMediaDirectory, path)

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create media directories: %w", err)
	}

	defer func() {
		if err != nil {
			// The error being propagated takes precedence over any
			// trouble removing the partial file.
			if rmErr := os.Remove(absPath); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn("failed to remove %s after write failure: %v", absPath, rmErr)
			}
		}
	}()

	f, err := os.Create(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for writing: %w", absPath, err)
	}

	if err = write(f); err != nil {
		f.Close()
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("failed to finish writing %s: %w", absPath, err)
	}

	verdict, err := ms.spamChecker.CheckMediaForSpam(ctx, NewChunkedFileReader(absPath), info)
	if err != nil {
		return "", fmt.Errorf("spam check failed: %w", err)
	}
	if verdict != VerdictNotSpam {
		logger.Info("blocking media %s due to spam checker", info)
		ms.metrics.RecordSpamBlocked()
		err = &SpamMediaError{Code: verdict}
		return "", err
	}

	// Replicate sequentially so a caller can infer which backends
	// succeeded up to any failure point.
	for _, backend := range ms.backends {
		bstart := time.Now()
		err = backend.Store(ctx, path, info)
		ms.metrics.ObserveBackend(backend.Name(), "store", time.Since(bstart), err)
		if err != nil {
			return "", fmt.Errorf("failed to store %s on backend %s: %w", path, backend.Name(), err)
		}
	}

	return absPath, nil
}

// FetchMedia locates the media described by info and returns a
// Responder streaming it. The local cache is consulted first (primary
// path, then the legacy remote-thumbnail path where applicable),
// followed by each backend in priority order trying the same candidate
// paths. Returns ErrMediaNotFound when nothing holds the media.
func (ms *MediaStorage) FetchMedia(ctx context.Context, info *FileInfo) (r Responder, err error) {
	start := time.Now()
	defer func() {
		ms.metrics.ObserveOperation("fetch_media", time.Since(start), err)
	}()

	paths, err := ms.candidatePaths(info)
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		localPath := filepath.Join(ms.localMediaDirectory, path)
		f, openErr := os.Open(localPath)
		if openErr == nil {
			logger.Debug("responding with local file %s", localPath)
			return NewFileResponder(f), nil
		}
		if !os.IsNotExist(openErr) {
			return nil, fmt.Errorf("failed to open %s: %w", localPath, openErr)
		}
		logger.Debug("local file %s did not exist", localPath)
	}

	for _, backend := range ms.backends {
		for _, path := range paths {
			bstart := time.Now()
			res, fetchErr := backend.Fetch(ctx, path, info)
			ms.metrics.ObserveBackend(backend.Name(), "fetch", time.Since(bstart), ignoreMiss(fetchErr))
			if fetchErr == nil {
				logger.Debug("streaming %s from %s", path, backend.Name())
				return res, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A failing backend is not fatal during fallback; log it
			// and keep trying the remaining candidates.
			if !isMiss(fetchErr) {
				logger.Warn("backend %s failed fetching %s: %v", backend.Name(), path, fetchErr)
			} else {
				logger.Debug("%s not found on %s", path, backend.Name())
			}
		}
	}

	return nil, ErrMediaNotFound
}

// EnsureLocal guarantees a local copy of the media described by info,
// downloading it from the first backend that holds it when necessary.
// Returns the absolute local path, or ErrMediaNotFound when neither the
// cache nor any backend can satisfy the descriptor.
func (ms *MediaStorage) EnsureLocal(ctx context.Context, info *FileInfo) (localPath string, err error) {
	start := time.Now()
	defer func() {
		ms.metrics.ObserveOperation("ensure_local", time.Since(start), err)
	}()

	path, err := ms.paths.RelativePath(info)
	if err != nil {
		return "", err
	}
	localPath = filepath.Join(ms.localMediaDirectory, path)
	if _, statErr := os.Stat(localPath); statErr == nil {
		return localPath, nil
	}

	// Thumbnails stored before the method was part of the filename.
	if info.Thumbnail != nil && info.ServerName != "" {
		legacyPath, lerr := ms.paths.LegacyRemoteThumbnailPath(info)
		if lerr != nil {
			return "", lerr
		}
		legacyLocalPath := filepath.Join(ms.localMediaDirectory, legacyPath)
		if _, statErr := os.Stat(legacyLocalPath); statErr == nil {
			return legacyLocalPath, nil
		}
	}

	if err = os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create media directories: %w", err)
	}

	for _, backend := range ms.backends {
		bstart := time.Now()
		res, fetchErr := backend.Fetch(ctx, path, info)
		ms.metrics.ObserveBackend(backend.Name(), "fetch", time.Since(bstart), ignoreMiss(fetchErr))
		if fetchErr != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if !isMiss(fetchErr) {
				logger.Warn("backend %s failed fetching %s: %v", backend.Name(), path, fetchErr)
			}
			continue
		}

		err = ms.downloadToLocal(ctx, res, localPath)
		res.Close()
		if err != nil {
			return "", err
		}
		logger.Debug("pulled %s into local cache from %s", path, backend.Name())
		return localPath, nil
	}

	return "", ErrMediaNotFound
}

// downloadToLocal streams a backend responder into localPath through
// the bounded copy pool. A partial download is removed before the error
// is returned.
func (ms *MediaStorage) downloadToLocal(ctx context.Context, res Responder, localPath string) (err error) {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s for writing: %w", localPath, err)
	}

	defer func() {
		if err != nil {
			if rmErr := os.Remove(localPath); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn("failed to remove %s after download failure: %v", localPath, rmErr)
			}
		}
	}()

	cw := &countingWriter{w: f}
	werr := ms.pool.Run(ctx, func() error {
		return res.WriteTo(ctx, cw)
	})
	ms.metrics.RecordBytes("read", cw.n)

	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to finish writing %s: %w", localPath, err)
	}
	if werr != nil {
		err = werr
		return err
	}
	return nil
}

// countingWriter tracks bytes written for metrics.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// candidatePaths returns the relative paths to try for info, in order:
// the primary resolved path, then the legacy remote-thumbnail path when
// the descriptor is a remote-origin thumbnail.
func (ms *MediaStorage) candidatePaths(info *FileInfo) ([]string, error) {
	primary, err := ms.paths.RelativePath(info)
	if err != nil {
		return nil, err
	}
	paths := []string{primary}

	if info.Thumbnail != nil && info.ServerName != "" {
		legacy, err := ms.paths.LegacyRemoteThumbnailPath(info)
		if err != nil {
			return nil, err
		}
		paths = append(paths, legacy)
	}
	return paths, nil
}

func isMiss(err error) bool {
	return errors.Is(err, ErrNotInBackend)
}

func ignoreMiss(err error) error {
	if isMiss(err) {
		return nil
	}
	return err
}
