package media

import (
	"context"
	"io"
	"os"
)

// Responder streams a located media object to a sink.
//
// A Responder owns exactly one underlying resource (an open local file
// or a backend stream). Callers must call Close exactly once when they
// are done, whether or not WriteTo was called or succeeded; Close is
// the release path for abandonment as well as completion.
type Responder interface {
	// WriteTo streams all remaining bytes to w.
	WriteTo(ctx context.Context, w io.Writer) error

	// Close releases the underlying resource. Safe to call after a
	// failed WriteTo.
	Close() error
}

// FileResponder streams an already-open local file.
//
// Ownership of the file transfers to the responder at construction; the
// file is closed by Close regardless of whether streaming happened.
type FileResponder struct {
	file *os.File
}

// NewFileResponder wraps an open file. The responder takes ownership of
// the handle.
func NewFileResponder(f *os.File) *FileResponder {
	return &FileResponder{file: f}
}

// WriteTo copies the file contents to w, checking the context between
// chunks so a cancelled download stops promptly.
func (r *FileResponder) WriteTo(ctx context.Context, w io.Writer) error {
	return copyChunks(ctx, w, r.file)
}

// Close closes the underlying file.
func (r *FileResponder) Close() error {
	return r.file.Close()
}

// StreamResponder adapts a backend ReadCloser into a Responder. Used by
// backends whose fetch path yields a network stream rather than a file.
type StreamResponder struct {
	rc io.ReadCloser
}

// NewStreamResponder wraps rc, taking ownership of it.
func NewStreamResponder(rc io.ReadCloser) *StreamResponder {
	return &StreamResponder{rc: rc}
}

func (r *StreamResponder) WriteTo(ctx context.Context, w io.Writer) error {
	return copyChunks(ctx, w, r.rc)
}

func (r *StreamResponder) Close() error {
	return r.rc.Close()
}

// copyChunks copies src to dst in fixed-size chunks with a context
// check before each read.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
