package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func runInstallCompletion(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "ossa-collector"}
	root.AddCommand(createInstallCompletionCommand())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"install-completion"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestInstallCompletionWritesToHome(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", filepath.Join(".bash_completion.d", "ossa-collector.bash")},
		{"zsh", filepath.Join(".zsh", "completion", "_ossa-collector")},
		{"fish", filepath.Join(".config", "fish", "completions", "ossa-collector.fish")},
		{"powershell", filepath.Join("Documents", "WindowsPowerShell", "ossa-collector-completion.ps1")},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			home := t.TempDir()
			t.Setenv("HOME", home)
			t.Setenv("USERPROFILE", home)
			t.Setenv("OSSA_COLLECTOR_COMPLETION_SCOPE", "")

			out, err := runInstallCompletion(t, "--shell", tt.shell)
			if err != nil {
				t.Fatalf("install-completion failed: %v", err)
			}
			target := filepath.Join(home, tt.want)
			data, err := os.ReadFile(target)
			if err != nil {
				t.Fatalf("completion file missing: %v", err)
			}
			if !strings.Contains(string(data), "ossa-collector") {
				t.Error("script does not mention the command")
			}
			if !strings.Contains(out, target) {
				t.Errorf("output does not name %s:\n%s", target, out)
			}
		})
	}
}

func TestInstallCompletionRefusesOverwrite(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	if _, err := runInstallCompletion(t, "--shell", "zsh"); err != nil {
		t.Fatal(err)
	}
	if _, err := runInstallCompletion(t, "--shell", "zsh"); err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
	if _, err := runInstallCompletion(t, "--shell", "zsh", "--force"); err != nil {
		t.Fatalf("--force should overwrite: %v", err)
	}
}

func TestInstallCompletionPrint(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	out, err := runInstallCompletion(t, "--shell", "bash", "--print")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ossa-collector") {
		t.Errorf("printed script looks empty:\n%.200s", out)
	}
	if entries, _ := os.ReadDir(home); len(entries) != 0 {
		t.Error("--print must not install anything")
	}
}

func TestInstallCompletionShellDetection(t *testing.T) {
	tests := []struct {
		name    string
		shell   string
		psPath  string
		want    string
		wantErr string
	}{
		{name: "zsh", shell: "/usr/bin/zsh", want: "zsh"},
		{name: "bash", shell: "/bin/bash", want: "bash"},
		{name: "powershell", psPath: `C:\Modules`, want: "powershell"},
		{name: "unknown", shell: "/bin/unknown-shell", wantErr: "unsupported shell"},
		{name: "nothing", wantErr: "could not detect shell"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SHELL", tt.shell)
			t.Setenv("PSModulePath", tt.psPath)
			got, err := detectShell()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("detectShell() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("detectShell() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestInstallCompletionUnsupportedShell(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := runInstallCompletion(t, "--shell", "tcsh"); err == nil {
		t.Fatal("expected error for unsupported shell")
	}
}
