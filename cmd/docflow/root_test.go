package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docflow/internal/config"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := newRootCommand()
	want := map[string]bool{
		"run": false, "status": false, "queue": false, "scan": false, "config": false,
	}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestConfigInitWritesLoadableSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output does not name the target: %q", out)
	}

	cfg, source, found, err := config.Load(target)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !found || source != target {
		t.Fatalf("sample not loaded from %s (found=%v source=%s)", target, found, source)
	}
	if cfg.Paths.APIBind == "" {
		t.Fatal("sample config missing api bind address")
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite succeeded")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	// Port 1 is never listening, so the request is refused immediately.
	content := "[paths]\napi_bind = \"127.0.0.1:1\"\n"
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := runCommand(t, "--config", target, "status")
	if err == nil {
		t.Fatal("status succeeded with no daemon listening")
	}
	if !strings.Contains(err.Error(), "docflow run") {
		t.Fatalf("error does not point at the daemon: %v", err)
	}
}
