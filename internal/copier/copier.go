// Package copier provides the bounded copy pool used for blocking disk
// I/O during media writes.
//
// The original implementation ran file copies on a reactor thread pool
// so its single-threaded scheduler never blocked on disk. Go schedules
// goroutines over OS threads preemptively, so no explicit thread
// hand-off is needed; what the pool preserves is the bound: at most N
// copies touch the disk at once, and callers suspend (context-aware) in
// Acquire until a slot frees up.
package copier

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/semaphore"
)

// chunkSize is the copy buffer size. Matches the chunked-write sizing
// used elsewhere in the tree for local disk I/O.
const chunkSize = 256 * 1024

// DefaultWorkers bounds concurrent copies when no explicit limit is
// configured.
const DefaultWorkers = 4

// Pool bounds the number of concurrent copy operations.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool allowing up to workers concurrent copies.
// Non-positive values fall back to DefaultWorkers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// CopyFrom rewinds src to its beginning and copies it fully into dst
// while holding a pool slot.
//
// The rewind makes the operation idempotent if retried with the same
// source handle.
func (p *Pool) CopyFrom(ctx context.Context, dst io.Writer, src io.ReadSeeker) (int64, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind source: %w", err)
	}
	return p.Copy(ctx, dst, src)
}

// Run executes fn while holding a pool slot. Used when the blocking
// work is driven by a stream the pool does not own (e.g. a backend
// responder writing into a local file).
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Copy copies src fully into dst while holding a pool slot. The copy
// proceeds in fixed-size chunks with a context check before each read,
// so cancellation takes effect mid-stream.
func (p *Pool) Copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer p.sem.Release(1)

	var written int64
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, err := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
