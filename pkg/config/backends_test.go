package config

import (
	"context"
	"path/filepath"
	"testing"
)

func TestBuildBackends_OrderAndNames(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{
		Media: MediaConfig{Path: filepath.Join(tmp, "media")},
		Backends: []BackendConfig{
			{Name: "mirror", Type: "filesystem", Filesystem: map[string]any{"path": filepath.Join(tmp, "mirror")}},
			{Name: "scratch", Type: "memory"},
		},
	}

	backends, err := BuildBackends(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to build backends: %v", err)
	}

	if len(backends) != 2 {
		t.Fatalf("Expected 2 backends, got %d", len(backends))
	}
	if backends[0].Name() != "mirror" {
		t.Errorf("Expected first backend 'mirror', got %q", backends[0].Name())
	}
	if backends[1].Name() != "scratch" {
		t.Errorf("Expected second backend 'scratch', got %q", backends[1].Name())
	}
}

func TestBuildBackends_FilesystemRequiresPath(t *testing.T) {
	cfg := &Config{
		Media:    MediaConfig{Path: t.TempDir()},
		Backends: []BackendConfig{{Type: "filesystem", Filesystem: map[string]any{}}},
	}

	if _, err := BuildBackends(context.Background(), cfg); err == nil {
		t.Fatal("Expected error for filesystem backend without path")
	}
}
