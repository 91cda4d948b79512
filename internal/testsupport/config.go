// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"docflow/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.BackupDir = filepath.Join(base, "backups")
	cfg.Paths.FailedDir = filepath.Join(base, "failed")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.OCR.APIKey = "test"
	cfg.Classifier.APIKey = "test"
	cfg.Watcher.StabilitySeconds = 1
	cfg.Watcher.StabilityChecks = 1
	cfg.Watcher.RemotePollSeconds = 1
	cfg.Watcher.ScanOnStart = false

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithScanOnStart enables the startup scan on the test config.
func WithScanOnStart() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Watcher.ScanOnStart = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
