// Package testing provides a reusable contract test suite for
// media.StorageBackend implementations.
//
// The suite tests the interface contract, not implementation details,
// so the same assertions run against the filesystem, memory and badger
// backends (and, with a fake or localstack client, S3).
//
// Usage:
//
//	func TestMyBackend(t *testing.T) {
//	    suite := &backendtesting.Suite{
//	        NewBackend: func(t *testing.T, localMediaPath string) media.StorageBackend {
//	            return mybackend.New(...)
//	        },
//	    }
//	    suite.Run(t)
//	}
package testing

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/mediavault/pkg/media"
)

// Suite exercises the StorageBackend contract.
type Suite struct {
	// NewBackend returns a fresh backend instance that sources uploads
	// from localMediaPath. Called once per subtest for isolation.
	NewBackend func(t *testing.T, localMediaPath string) media.StorageBackend
}

// Run executes all contract tests.
func (s *Suite) Run(t *testing.T) {
	t.Run("FetchMissing", s.testFetchMissing)
	t.Run("StoreThenFetch", s.testStoreThenFetch)
	t.Run("StoreNestedPath", s.testStoreNestedPath)
	t.Run("StoreOverwrite", s.testStoreOverwrite)
	t.Run("SurvivesLocalDelete", s.testSurvivesLocalDelete)
	t.Run("StoreMissingLocalFile", s.testStoreMissingLocalFile)
}

func (s *Suite) testFetchMissing(t *testing.T) {
	backend := s.NewBackend(t, t.TempDir())

	_, err := backend.Fetch(context.Background(), "local_content/aa/bb/missing", testInfo())
	require.ErrorIs(t, err, media.ErrNotInBackend)
}

func (s *Suite) testStoreThenFetch(t *testing.T) {
	localDir := t.TempDir()
	backend := s.NewBackend(t, localDir)

	data := randomData(t, 64*1024)
	relPath := "local_content/ab/cd/efgh"
	writeLocal(t, localDir, relPath, data)

	require.NoError(t, backend.Store(context.Background(), relPath, testInfo()))

	got := fetchAll(t, backend, relPath)
	assert.Equal(t, data, got)
}

func (s *Suite) testStoreNestedPath(t *testing.T) {
	localDir := t.TempDir()
	backend := s.NewBackend(t, localDir)

	data := []byte("thumbnail bytes")
	relPath := "remote_thumbnail/example.org/ab/cd/efgh/32-32-image-jpeg-scale"
	writeLocal(t, localDir, relPath, data)

	require.NoError(t, backend.Store(context.Background(), relPath, testInfo()))

	got := fetchAll(t, backend, relPath)
	assert.Equal(t, data, got)
}

func (s *Suite) testStoreOverwrite(t *testing.T) {
	localDir := t.TempDir()
	backend := s.NewBackend(t, localDir)

	relPath := "local_content/ab/cd/efgh"
	writeLocal(t, localDir, relPath, []byte("first"))
	require.NoError(t, backend.Store(context.Background(), relPath, testInfo()))

	writeLocal(t, localDir, relPath, []byte("second"))
	require.NoError(t, backend.Store(context.Background(), relPath, testInfo()))

	got := fetchAll(t, backend, relPath)
	assert.Equal(t, []byte("second"), got)
}

func (s *Suite) testSurvivesLocalDelete(t *testing.T) {
	localDir := t.TempDir()
	backend := s.NewBackend(t, localDir)

	data := []byte("kept after eviction")
	relPath := "local_content/ab/cd/efgh"
	writeLocal(t, localDir, relPath, data)
	require.NoError(t, backend.Store(context.Background(), relPath, testInfo()))

	// Evict the local copy; the backend must still serve the object.
	require.NoError(t, os.Remove(filepath.Join(localDir, relPath)))

	got := fetchAll(t, backend, relPath)
	assert.Equal(t, data, got)
}

func (s *Suite) testStoreMissingLocalFile(t *testing.T) {
	backend := s.NewBackend(t, t.TempDir())

	err := backend.Store(context.Background(), "local_content/aa/bb/nothere", testInfo())
	require.Error(t, err)
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func testInfo() *media.FileInfo {
	return &media.FileInfo{FileID: "abcdefgh"}
}

func writeLocal(t *testing.T, localDir, relPath string, data []byte) {
	t.Helper()
	full := filepath.Join(localDir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, data, 0644))
}

func fetchAll(t *testing.T, backend media.StorageBackend, relPath string) []byte {
	t.Helper()
	res, err := backend.Fetch(context.Background(), relPath, testInfo())
	require.NoError(t, err)
	defer res.Close()

	var buf bytes.Buffer
	require.NoError(t, res.WriteTo(context.Background(), &buf))
	return buf.Bytes()
}

func randomData(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}
