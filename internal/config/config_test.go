package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", path)
	}
	if cfg.Naming.MaxLength != defaultNamingMaxLength {
		t.Errorf("naming.max_length = %d, want default %d", cfg.Naming.MaxLength, defaultNamingMaxLength)
	}
	if cfg.Watcher.StabilityChecks != defaultStabilityChecks {
		t.Errorf("watcher.stability_checks = %d, want default %d", cfg.Watcher.StabilityChecks, defaultStabilityChecks)
	}
	if cfg.OCR.BaseURL == "" || cfg.Classifier.Model == "" {
		t.Error("collaborator defaults missing")
	}
}

func TestLoadParsesFileAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	content := `
[paths]
data_dir = "~/docflow-test-data"
backup_dir = "` + filepath.Join(dir, "backups") + `"
failed_dir = "` + filepath.Join(dir, "failed") + `"

[naming]
max_length = 32

[logging]
format = "json"
level = "debug"
`
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Naming.MaxLength != 32 {
		t.Errorf("naming.max_length = %d, want 32", cfg.Naming.MaxLength)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("home dir: %v", err)
	}
	if want := filepath.Join(home, "docflow-test-data"); cfg.Paths.DataDir != want {
		t.Errorf("data_dir = %q, want %q", cfg.Paths.DataDir, want)
	}
}

func TestLoadRejectsInvalidLogging(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}

func TestValidateRejectsSharedBackupAndFailedDir(t *testing.T) {
	cfg := Default()
	cfg.Paths.BackupDir = "/tmp/same"
	cfg.Paths.FailedDir = "/tmp/same"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("Validate = %v, want backup/failed conflict", err)
	}
}

func TestEnvOverridesProvideAPIKeys(t *testing.T) {
	t.Setenv("DOCFLOW_OCR_API_KEY", "ocr-env")
	t.Setenv("DOCFLOW_CLASSIFIER_API_KEY", "classify-env")

	cfg, _, _, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OCR.APIKey != "ocr-env" {
		t.Errorf("ocr.api_key = %q", cfg.OCR.APIKey)
	}
	if cfg.Classifier.APIKey != "classify-env" {
		t.Errorf("classifier.api_key = %q", cfg.Classifier.APIKey)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample config does not load: exists=%v err=%v", exists, err)
	}
	if err := CreateSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
}
