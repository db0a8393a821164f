package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

const minimalConfig = `
site:
  id: site-test
upstream:
  base_url: https://backend.example.com
`

func TestLoad_Minimal(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.BaseURL != "https://backend.example.com" {
		t.Errorf("Upstream.BaseURL = %q", cfg.Upstream.BaseURL)
	}

	// Defaults should fill in everything else.
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090", cfg.API.Port)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path should have a default")
	}
	if !cfg.Database.WALMode {
		t.Error("Database.WALMode should default to true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want /ws", cfg.WebSocket.Path)
	}
}

func TestLoad_MissingUpstream(t *testing.T) {
	path := writeConfigFile(t, "site:\n  id: site-test\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail without upstream.base_url")
	}
	if !strings.Contains(err.Error(), "upstream.base_url") {
		t.Errorf("error should mention upstream.base_url, got: %v", err)
	}
}

func TestLoad_InvalidBaseURL(t *testing.T) {
	path := writeConfigFile(t, "site:\n  id: site-test\nupstream:\n  base_url: not-a-url\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail with a relative base_url")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	t.Setenv("PANELCORE_UPSTREAM_BASE_URL", "https://other.example.com")
	t.Setenv("PANELCORE_DATABASE_PATH", "/tmp/override.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.BaseURL != "https://other.example.com" {
		t.Errorf("env override not applied: BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("env override not applied: Database.Path = %q", cfg.Database.Path)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestValidate_PortRange(t *testing.T) {
	cfg := defaultConfig()
	cfg.Upstream.BaseURL = "https://backend.example.com"
	cfg.API.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject port 0")
	}

	cfg.API.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject port 70000")
	}
}

func TestValidate_MirrorQoS(t *testing.T) {
	cfg := defaultConfig()
	cfg.Upstream.BaseURL = "https://backend.example.com"
	cfg.Mirror.QoS = 3

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject QoS 3")
	}
}
