package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setConfigEnv points PANELCORE_CONFIG at the given path for one test.
func setConfigEnv(t *testing.T, path string) {
	t.Helper()
	original := os.Getenv("PANELCORE_CONFIG")
	t.Cleanup(func() { os.Setenv("PANELCORE_CONFIG", original) })
	os.Setenv("PANELCORE_CONFIG", path)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	setConfigEnv(t, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingUpstream verifies run fails when no backend origin is set.
func TestRun_MissingUpstream(t *testing.T) {
	path := writeConfig(t, `
site:
  id: test-site

database:
  path: ""

logging:
  level: error
  format: text
`)
	setConfigEnv(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without upstream.base_url")
	}
	if !strings.Contains(err.Error(), "upstream.base_url") {
		t.Errorf("run() error = %v, want upstream.base_url validation failure", err)
	}
}

// TestRun_StartsAndShutsDown brings the daemon up with optional
// integrations disabled and an unreachable backend, then cancels the
// context. The gateway must come up regardless of backend reachability
// and shut down cleanly.
func TestRun_StartsAndShutsDown(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(`
site:
  id: test-site

upstream:
  base_url: "http://127.0.0.1:1"

database:
  path: %q

api:
  host: "127.0.0.1"
  port: 38790

mirror:
  enabled: false

history:
  enabled: false

logging:
  level: error
  format: text
`, filepath.Join(tmpDir, "panelcore.db")))
	setConfigEnv(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}
}
