package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vk/weave/internal/registry"
	"github.com/vk/weave/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Logs are
// captured at debug level and printed when WEAVE_TEST_LOGS is "true".
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp, err := NewApp(logBuffer, cfg, modules...)

	t.Cleanup(func() {
		if os.Getenv("WEAVE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	if err != nil {
		t.Fatalf("failed to create app: %v\nlogs:\n%s", err, logBuffer.String())
	}
	return testApp, logBuffer
}

// WritePackages writes package files into a fresh directory and returns
// its path. Contents are unindented so tests can embed indented YAML.
func WritePackages(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(testutil.Unindent(content)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
