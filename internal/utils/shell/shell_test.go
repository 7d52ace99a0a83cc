package shell_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/open-edge-platform/ossa-collector/internal/utils/shell"
)

func TestGetFullCmdStr(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		sudo    bool
		env     []string
		want    string
		wantErr bool
	}{
		{
			name: "single command",
			cmd:  "echo 'hello'",
			want: "/usr/bin/echo 'hello'",
		},
		{
			name: "pipe",
			cmd:  "rpm2cpio /tmp/a.src.rpm | cpio -idm -D /tmp/out",
			want: "/usr/bin/rpm2cpio /tmp/a.src.rpm | /usr/bin/cpio -idm -D /tmp/out",
		},
		{
			name: "logical or before pipe",
			cmd:  "false || echo ok",
			want: "/usr/bin/false || /usr/bin/echo ok",
		},
		{
			name: "sudo with env",
			cmd:  "dnf repoquery --source",
			sudo: true,
			env:  []string{"LANG=C"},
			want: "sudo LANG=C /usr/bin/dnf repoquery --source",
		},
		{
			name:    "unknown command",
			cmd:     "curl http://example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := shell.GetFullCmdStr(tt.cmd, tt.sudo, tt.env)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetFullCmdStr() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GetFullCmdStr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecCmdWithMock(t *testing.T) {
	originalExecutor := shell.Default
	defer func() { shell.Default = originalExecutor }()

	mock := shell.NewMockExecutor([]shell.MockCommand{
		{Pattern: "dnf repoquery", Output: "bash-5.2.26-3.fc40.src\n"},
		{Pattern: "yumdownloader", Output: "", Error: errors.New("exit status 1")},
	})
	shell.Default = mock

	out, err := shell.ExecCmd("dnf repoquery --source", false, nil)
	if err != nil {
		t.Fatalf("ExecCmd() error = %v", err)
	}
	if !strings.Contains(out, "bash-5.2.26") {
		t.Errorf("unexpected output: %q", out)
	}

	if _, err := shell.ExecCmdSilent("yumdownloader --source bash", false, nil); err == nil {
		t.Error("expected error from mocked failure")
	}

	if len(mock.Calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(mock.Calls))
	}
	if !strings.HasPrefix(mock.Calls[0], "/usr/bin/dnf") {
		t.Errorf("call not resolved to full path: %q", mock.Calls[0])
	}
}

func TestMockExecutorNoMatch(t *testing.T) {
	mock := shell.NewMockExecutor(nil)
	if _, err := mock.Exec("/usr/bin/ls"); err == nil {
		t.Error("expected error for unmatched command")
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"plain":      "'plain'",
		"with space": "'with space'",
		"it's":       `'it'\''s'`,
	}
	for in, want := range tests {
		if got := shell.Quote(in); got != want {
			t.Errorf("Quote(%q) = %q, want %q", in, got, want)
		}
	}
}
