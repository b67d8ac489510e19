package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"eda-dashboard/internal/config"
)

func runConfig(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg = config.Default()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"config"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eda.yaml")

	out, err := runConfig(t, "init", "--path", path)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "Wrote "+path) {
		t.Errorf("unexpected output: %s", out)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if loaded.Server.Port != 8084 {
		t.Errorf("expected default port 8084, got %d", loaded.Server.Port)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eda.yaml")

	if _, err := runConfig(t, "init", "--path", path); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if _, err := runConfig(t, "init", "--path", path); err == nil {
		t.Error("expected an error without --force")
	}
	if _, err := runConfig(t, "init", "--path", path, "--force"); err != nil {
		t.Errorf("init --force failed: %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	out, err := runConfig(t, "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, key := range []string{"server:", "logger:", "engine:", "dataset:"} {
		if !strings.Contains(out, key) {
			t.Errorf("expected %q section in output", key)
		}
	}
}
