package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
media:
  path: "/tmp/mediavault-test"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.Port != 8448 {
		t.Errorf("Expected default port 8448, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Media.CopyWorkers != 4 {
		t.Errorf("Expected default copy_workers 4, got %d", cfg.Media.CopyWorkers)
	}
	if len(cfg.Backends) != 0 {
		t.Errorf("Expected no backends by default, got %d", len(cfg.Backends))
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	nonExistent := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistent)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}
	if cfg.Media.Path == "" {
		t.Error("Expected default media path to be set")
	}
}

func TestLoad_BackendOrderPreserved(t *testing.T) {
	path := writeConfig(t, `
media:
  path: "/tmp/mediavault-test"

backends:
  - name: "primary"
    type: "filesystem"
    filesystem:
      path: "/tmp/backend-a"
  - name: "offsite"
    type: "s3"
    s3:
      region: "eu-west-1"
      bucket: "media"
  - name: "archive"
    type: "badger"
    badger:
      path: "/tmp/backend-b"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	want := []string{"primary", "offsite", "archive"}
	if len(cfg.Backends) != len(want) {
		t.Fatalf("Expected %d backends, got %d", len(want), len(cfg.Backends))
	}
	for i, name := range want {
		if cfg.Backends[i].Name != name {
			t.Errorf("Backend %d: expected name %q, got %q", i, name, cfg.Backends[i].Name)
		}
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "media: [unclosed")

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestValidate_UnknownBackendType(t *testing.T) {
	path := writeConfig(t, `
media:
  path: "/tmp/mediavault-test"

backends:
  - type: "carrier-pigeon"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for unknown backend type")
	}
}

func TestValidate_DuplicateBackendNames(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		Server: ServerConfig{
			BindAddress:     "0.0.0.0",
			Port:            8448,
			ShutdownTimeout: 30 * time.Second,
		},
		Media: MediaConfig{Path: "/tmp/mediavault-test"},
		Backends: []BackendConfig{
			{Name: "dup", Type: "filesystem", Filesystem: map[string]any{"path": "/tmp/a"}},
			{Name: "dup", Type: "badger", Badger: map[string]any{"path": "/tmp/b"}},
		},
	}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for duplicate backend names")
	}
}

func TestValidate_MissingTypeSection(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		Server: ServerConfig{
			BindAddress:     "0.0.0.0",
			Port:            8448,
			ShutdownTimeout: 30 * time.Second,
		},
		Media:    MediaConfig{Path: "/tmp/mediavault-test"},
		Backends: []BackendConfig{{Type: "s3"}},
	}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for s3 backend without s3 section")
	}
}
