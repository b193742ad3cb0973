package media_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/mediavault/pkg/backend/memory"
	"github.com/mediavault/mediavault/pkg/media"
)

// recordingBackend wraps another backend and records every call, so
// tests can assert replication order and that backends were (not)
// contacted.
type recordingBackend struct {
	inner media.StorageBackend
	calls []string
}

func (r *recordingBackend) Name() string { return r.inner.Name() }

func (r *recordingBackend) Store(ctx context.Context, relPath string, info *media.FileInfo) error {
	r.calls = append(r.calls, "store "+relPath)
	return r.inner.Store(ctx, relPath, info)
}

func (r *recordingBackend) Fetch(ctx context.Context, relPath string, info *media.FileInfo) (media.Responder, error) {
	r.calls = append(r.calls, "fetch "+relPath)
	return r.inner.Fetch(ctx, relPath, info)
}

// failingBackend fails every store and misses every fetch.
type failingBackend struct{ name string }

func (f *failingBackend) Name() string { return f.name }

func (f *failingBackend) Store(context.Context, string, *media.FileInfo) error {
	return fmt.Errorf("%s: store unavailable", f.name)
}

func (f *failingBackend) Fetch(context.Context, string, *media.FileInfo) (media.Responder, error) {
	return nil, media.ErrNotInBackend
}

// rejectingChecker rejects everything with a fixed verdict.
type rejectingChecker struct{ verdict media.Verdict }

func (c rejectingChecker) CheckMediaForSpam(context.Context, *media.ChunkedFileReader, *media.FileInfo) (media.Verdict, error) {
	return c.verdict, nil
}

func newStorage(t *testing.T, backends ...media.StorageBackend) (*media.MediaStorage, string) {
	t.Helper()
	dir := t.TempDir()
	ms, err := media.NewMediaStorage(dir, backends, media.Options{})
	require.NoError(t, err)
	return ms, dir
}

func readAll(t *testing.T, r media.Responder) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.WriteTo(context.Background(), &buf))
	require.NoError(t, r.Close())
	return buf.Bytes()
}

func relPath(t *testing.T, info *media.FileInfo) string {
	t.Helper()
	rel, err := media.NewFilePaths().RelativePath(info)
	require.NoError(t, err)
	return rel
}

func TestStoreFile_EndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})
	b2 := memory.New(memory.Config{Name: "b2", LocalMediaPath: dir})
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1, b2}, media.Options{})
	require.NoError(t, err)

	info := &media.FileInfo{FileID: "GerZNDnDZVjsOtardLuwfIBg"}
	payload := []byte("0123456789")

	fname, err := ms.StoreFile(ctx, bytes.NewReader(payload), info)
	require.NoError(t, err)

	// Local cache holds the bytes at the resolved path.
	assert.Equal(t, filepath.Join(dir, relPath(t, info)), fname)
	got, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Both backends hold the same object under the same relative path.
	for _, b := range []*memory.MemoryBackend{b1, b2} {
		data, ok := b.Get(relPath(t, info))
		require.True(t, ok, "backend %s missing object", b.Name())
		assert.Equal(t, payload, data)
	}

	// And a fetch round-trips the payload.
	res, err := ms.FetchMedia(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, payload, readAll(t, res))
}

func TestStoreFile_RewindsSource(t *testing.T) {
	ctx := context.Background()
	ms, _ := newStorage(t)

	payload := []byte("0123456789")
	source := bytes.NewReader(payload)
	// Simulate a caller that already consumed part of the stream.
	_, err := source.Seek(4, 0)
	require.NoError(t, err)

	fname, err := ms.StoreFile(ctx, source, &media.FileInfo{FileID: "abcdefgh"})
	require.NoError(t, err)

	got, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStoreFile_ReplicationOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := &recordingBackend{inner: memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})}
	b2 := &recordingBackend{inner: memory.New(memory.Config{Name: "b2", LocalMediaPath: dir})}
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1, b2}, media.Options{})
	require.NoError(t, err)

	info := &media.FileInfo{FileID: "abcdefgh"}
	_, err = ms.StoreFile(ctx, strings.NewReader("payload"), info)
	require.NoError(t, err)

	rel := relPath(t, info)
	require.Equal(t, []string{"store " + rel}, b1.calls)
	require.Equal(t, []string{"store " + rel}, b2.calls)
}

func TestStoreFile_BackendFailureRemovesLocalFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})
	ms, err := media.NewMediaStorage(dir,
		[]media.StorageBackend{b1, &failingBackend{name: "flaky"}},
		media.Options{})
	require.NoError(t, err)

	info := &media.FileInfo{FileID: "abcdefgh"}
	_, err = ms.StoreFile(ctx, strings.NewReader("payload"), info)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flaky")

	// The local file is cleaned up even though the first backend
	// already accepted the object.
	_, statErr := os.Stat(filepath.Join(dir, relPath(t, info)))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreFile_SpamRejection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := &recordingBackend{inner: memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})}
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1}, media.Options{
		SpamChecker: rejectingChecker{verdict: "SPAM"},
	})
	require.NoError(t, err)

	info := &media.FileInfo{FileID: "abcdefgh"}
	_, err = ms.StoreFile(ctx, strings.NewReader("payload"), info)
	require.Error(t, err)

	// The rejection reports as not-found to callers and carries the
	// checker's verdict for those who look.
	assert.ErrorIs(t, err, media.ErrMediaNotFound)
	var spamErr *media.SpamMediaError
	require.ErrorAs(t, err, &spamErr)
	assert.Equal(t, media.Verdict("SPAM"), spamErr.Code)

	// No local file survives and no backend was contacted.
	_, statErr := os.Stat(filepath.Join(dir, relPath(t, info)))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, b1.calls)
}

func TestStoreInto_WriteFailureRemovesLocalFile(t *testing.T) {
	ctx := context.Background()
	ms, dir := newStorage(t)

	info := &media.FileInfo{FileID: "abcdefgh"}
	wantErr := errors.New("upstream hung up")
	_, err := ms.StoreInto(ctx, info, func(f io.Writer) error {
		_, _ = f.Write([]byte("partial"))
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, statErr := os.Stat(filepath.Join(dir, relPath(t, info)))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreFile_CancelledContextCleansUp(t *testing.T) {
	ms, dir := newStorage(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info := &media.FileInfo{FileID: "abcdefgh"}
	_, err := ms.StoreFile(ctx, strings.NewReader("payload"), info)
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(dir, relPath(t, info)))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreFile_MidWriteCancellationCleansUp(t *testing.T) {
	ms, dir := newStorage(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	info := &media.FileInfo{FileID: "abcdefgh"}
	source := &cancelAfterFirstRead{r: strings.NewReader("payload"), cancel: cancel}

	_, err := ms.StoreFile(ctx, source, info)
	require.ErrorIs(t, err, context.Canceled)

	// The partially written local file is gone.
	_, statErr := os.Stat(filepath.Join(dir, relPath(t, info)))
	assert.True(t, os.IsNotExist(statErr))
}

// cancelAfterFirstRead cancels the surrounding context as soon as the
// first chunk has been handed out, simulating a client that disconnects
// mid-upload.
type cancelAfterFirstRead struct {
	r      io.ReadSeeker
	cancel context.CancelFunc
}

func (c *cancelAfterFirstRead) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.cancel()
	return n, err
}

func (c *cancelAfterFirstRead) Seek(offset int64, whence int) (int64, error) {
	return c.r.Seek(offset, whence)
}

func TestFetchMedia_LocalTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1}, media.Options{})
	require.NoError(t, err)

	info := &media.FileInfo{FileID: "abcdefgh"}
	rel := relPath(t, info)

	b1.Put(rel, []byte("stale backend copy"))
	localPath := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(localPath), 0755))
	require.NoError(t, os.WriteFile(localPath, []byte("local copy"), 0644))

	res, err := ms.FetchMedia(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, []byte("local copy"), readAll(t, res))
}

func TestFetchMedia_BackendPriorityOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})
	b2 := memory.New(memory.Config{Name: "b2", LocalMediaPath: dir})
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1, b2}, media.Options{})
	require.NoError(t, err)

	info := &media.FileInfo{FileID: "abcdefgh"}
	rel := relPath(t, info)
	b1.Put(rel, []byte("from b1"))
	b2.Put(rel, []byte("from b2"))

	res, err := ms.FetchMedia(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, []byte("from b1"), readAll(t, res))
}

func TestFetchMedia_LegacyThumbnailFallback(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1}, media.Options{})
	require.NoError(t, err)

	info := &media.FileInfo{
		FileID:     "abcdefgh",
		ServerName: "example.org",
		Thumbnail:  &media.ThumbnailInfo{Width: 32, Height: 32, ContentType: "image/jpeg", Method: "scale"},
	}
	legacy, err := media.NewFilePaths().LegacyRemoteThumbnailPath(info)
	require.NoError(t, err)

	// Only the legacy path exists, as if written before the thumbnail
	// method became part of the filename.
	b1.Put(legacy, []byte("old thumbnail"))

	res, err := ms.FetchMedia(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, []byte("old thumbnail"), readAll(t, res))
}

func TestFetchMedia_LegacyLocalFallback(t *testing.T) {
	ctx := context.Background()
	ms, dir := newStorage(t)

	info := &media.FileInfo{
		FileID:     "abcdefgh",
		ServerName: "example.org",
		Thumbnail:  &media.ThumbnailInfo{Width: 32, Height: 32, ContentType: "image/jpeg", Method: "scale"},
	}
	legacy, err := media.NewFilePaths().LegacyRemoteThumbnailPath(info)
	require.NoError(t, err)

	legacyPath := filepath.Join(dir, legacy)
	require.NoError(t, os.MkdirAll(filepath.Dir(legacyPath), 0755))
	require.NoError(t, os.WriteFile(legacyPath, []byte("old local thumbnail"), 0644))

	res, err := ms.FetchMedia(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, []byte("old local thumbnail"), readAll(t, res))
}

func TestFetchMedia_NotFound(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1}, media.Options{})
	require.NoError(t, err)

	_, err = ms.FetchMedia(ctx, &media.FileInfo{FileID: "abcdefgh"})
	assert.ErrorIs(t, err, media.ErrMediaNotFound)
}

func TestFetchMedia_SkipsFailingBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b2 := memory.New(memory.Config{Name: "b2", LocalMediaPath: dir})
	ms, err := media.NewMediaStorage(dir,
		[]media.StorageBackend{&failingBackend{name: "flaky"}, b2},
		media.Options{})
	require.NoError(t, err)

	info := &media.FileInfo{FileID: "abcdefgh"}
	b2.Put(relPath(t, info), []byte("survivor"))

	res, err := ms.FetchMedia(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, []byte("survivor"), readAll(t, res))
}

func TestEnsureLocal_DownloadsFromFirstHoldingBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := &recordingBackend{inner: memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})}
	b2 := memory.New(memory.Config{Name: "b2", LocalMediaPath: dir})
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1, b2}, media.Options{})
	require.NoError(t, err)

	info := &media.FileInfo{FileID: "abcdefgh"}
	rel := relPath(t, info)
	// b1 misses, b2 holds the object.
	b2.Put(rel, []byte("payload"))

	localPath, err := ms.EnsureLocal(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, rel), localPath)

	got, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	// b1 was consulted first.
	assert.Equal(t, []string{"fetch " + rel}, b1.calls)

	// Once cached, backends are not contacted again.
	b1.calls = nil
	localPath2, err := ms.EnsureLocal(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, localPath, localPath2)
	assert.Empty(t, b1.calls)
}

func TestEnsureLocal_LegacyLocalPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := &recordingBackend{inner: memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})}
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1}, media.Options{})
	require.NoError(t, err)

	info := &media.FileInfo{
		FileID:     "abcdefgh",
		ServerName: "example.org",
		Thumbnail:  &media.ThumbnailInfo{Width: 32, Height: 32, ContentType: "image/jpeg", Method: "scale"},
	}
	legacy, err := media.NewFilePaths().LegacyRemoteThumbnailPath(info)
	require.NoError(t, err)

	legacyPath := filepath.Join(dir, legacy)
	require.NoError(t, os.MkdirAll(filepath.Dir(legacyPath), 0755))
	require.NoError(t, os.WriteFile(legacyPath, []byte("old local thumbnail"), 0644))

	localPath, err := ms.EnsureLocal(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, legacyPath, localPath)
	assert.Empty(t, b1.calls)
}

func TestEnsureLocal_NotFound(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b1 := memory.New(memory.Config{Name: "b1", LocalMediaPath: dir})
	ms, err := media.NewMediaStorage(dir, []media.StorageBackend{b1}, media.Options{})
	require.NoError(t, err)

	_, err = ms.EnsureLocal(ctx, &media.FileInfo{FileID: "abcdefgh"})
	assert.ErrorIs(t, err, media.ErrMediaNotFound)
}

func TestNewMediaStorage_RequiresDirectory(t *testing.T) {
	_, err := media.NewMediaStorage("", nil, media.Options{})
	require.Error(t, err)
}
