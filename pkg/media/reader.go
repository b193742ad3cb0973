package media

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the unit in which media files are streamed: to the spam
// checker, to responder sinks and into the local cache. 16 KiB keeps
// peak memory per in-flight stream small without excessive syscalls.
const ChunkSize = 16 * 1024

// ChunkedFileReader hands a local file to a consumer chunk by chunk
// without ever holding the whole file in memory.
//
// It exists so the spam checker can scan a freshly written local file
// before replication. The original implementation slept for zero
// seconds between chunks to yield its cooperative scheduler; Go
// goroutines are preempted by the runtime, so the equivalent here is a
// context check between chunks, which also makes a cancelled scan stop
// promptly.
type ChunkedFileReader struct {
	path string
}

// NewChunkedFileReader returns a reader for the file at path. The file
// is opened lazily by WriteChunksTo.
func NewChunkedFileReader(path string) *ChunkedFileReader {
	return &ChunkedFileReader{path: path}
}

// Path returns the local path being read.
func (r *ChunkedFileReader) Path() string {
	return r.path
}

// WriteChunksTo reads the file in ChunkSize chunks and invokes callback
// with each one, in order, until end of file.
//
// The byte slice passed to callback is reused between invocations;
// consumers that need to retain a chunk must copy it.
func (r *ChunkedFileReader) WriteChunksTo(ctx context.Context, callback func([]byte) error) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to open %s for scanning: %w", r.path, err)
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := f.Read(buf)
		if n > 0 {
			if cberr := callback(buf[:n]); cberr != nil {
				return cberr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", r.path, err)
		}
	}
}
