package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-edge-platform/ossa-collector/internal/config"
)

func setupCleanConfig(t *testing.T) (workDir, outDir string) {
	t.Helper()
	dir := t.TempDir()
	workDir = filepath.Join(dir, "work")
	outDir = filepath.Join(dir, "out")
	for _, d := range []string{filepath.Join(workDir, "packages"), outDir} {
		if err := os.MkdirAll(d, 0700); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(outDir, "ossa-demo.json"), []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "notes.txt"), []byte("keep"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultGlobalConfig()
	cfg.WorkDir = workDir
	cfg.OutputDir = outDir
	config.SetGlobal(cfg)
	t.Cleanup(func() { config.SetGlobal(config.DefaultGlobalConfig()) })
	return workDir, outDir
}

func runClean(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := createCleanCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCleanDefaultsToWorkspace(t *testing.T) {
	workDir, outDir := setupCleanConfig(t)

	out, err := runClean(t)
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if !strings.Contains(out, "Removed paths:") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(workDir, "packages")); !os.IsNotExist(err) {
		t.Error("workspace directory should be gone")
	}
	if _, err := os.Stat(filepath.Join(outDir, "ossa-demo.json")); err != nil {
		t.Error("advisories must survive a workspace-only clean")
	}
}

func TestCleanAllDryRun(t *testing.T) {
	workDir, outDir := setupCleanConfig(t)

	out, err := runClean(t, "--all", "--dry-run")
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if !strings.Contains(out, "Dry run") || !strings.Contains(out, "Would remove:") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, filepath.Join(outDir, "ossa-demo.json")) {
		t.Errorf("advisory not listed:\n%s", out)
	}
	if strings.Contains(out, "notes.txt") {
		t.Error("non-advisory files must not be targeted")
	}
	if _, err := os.Stat(filepath.Join(workDir, "packages")); err != nil {
		t.Error("dry run must not delete anything")
	}
}

func TestCleanOutputOnly(t *testing.T) {
	workDir, outDir := setupCleanConfig(t)

	if _, err := runClean(t, "--output"); err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "ossa-demo.json")); !os.IsNotExist(err) {
		t.Error("advisory should be removed")
	}
	if _, err := os.Stat(filepath.Join(outDir, "notes.txt")); err != nil {
		t.Error("unrelated file removed")
	}
	if _, err := os.Stat(filepath.Join(workDir, "packages")); err != nil {
		t.Error("workspace should be untouched")
	}
}

func TestCleanNothingSelected(t *testing.T) {
	setupCleanConfig(t)
	if _, err := runClean(t, "--workspace=false"); err == nil {
		t.Fatal("expected error when every scope is disabled")
	}
}

func TestIndentPaths(t *testing.T) {
	got := indentPaths([]string{"/a", "/b"})
	if len(got) != 2 || got[0] != "  /a" || got[1] != "  /b" {
		t.Errorf("indentPaths() = %q", got)
	}
}
