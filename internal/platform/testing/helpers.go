// Package testing holds fixtures shared by package tests.
package testing

import (
	"io"
	"testing"

	"tms-server/internal/platform/config"
	"tms-server/internal/platform/logging"
)

// TestSessionSecret is long enough to pass config validation.
const TestSessionSecret = "0123456789abcdef0123456789abcdef"

// SetupTestConfig returns a valid configuration that touches nothing outside
// the test's temp dir: memory drivers, no static mounts, cheap hashing.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.PublicDir = ""
	cfg.Server.PanelDir = ""
	cfg.Log.Dir = t.TempDir()
	cfg.Log.File = "test.log"
	cfg.Auth.SessionSecret = TestSessionSecret
	cfg.RowStore.Type = "memory"
	cfg.RateLimit.Store.Type = "memory"
	cfg.Portal.BcryptCost = 4
	return cfg
}

// SetupTestLogger builds a debug logger writing under a temp dir and closes
// it when the test ends.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    "DEBUG",
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
		Console:  io.Discard,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}
