package shell

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
)

// commandMap pins every external tool the collector may run to an absolute path.
var commandMap = map[string]string{
	"bash":          "/usr/bin/bash",
	"cat":           "/usr/bin/cat",
	"cpio":          "/usr/bin/cpio",
	"dnf":           "/usr/bin/dnf",
	"echo":          "/usr/bin/echo",
	"false":         "/usr/bin/false",
	"find":          "/usr/bin/find",
	"ls":            "/usr/bin/ls",
	"rm":            "/usr/bin/rm",
	"rpm":           "/usr/bin/rpm",
	"rpm2cpio":      "/usr/bin/rpm2cpio",
	"sh":            "/bin/sh",
	"sudo":          "/usr/bin/sudo",
	"swh":           "/usr/local/bin/swh",
	"swh-identify":  "/usr/local/bin/swh-identify",
	"tar":           "/usr/bin/tar",
	"true":          "/usr/bin/true",
	"yumdownloader": "/usr/bin/yumdownloader",
}

// Executor runs a fully prepared command line and returns its standard output.
type Executor interface {
	Exec(cmdStr string) (string, error)
}

// DefaultExecutor runs commands through bash on the host.
type DefaultExecutor struct{}

// Default is the executor used by ExecCmd. Tests replace it with a MockExecutor.
var Default Executor = &DefaultExecutor{}

func (e *DefaultExecutor) Exec(cmdStr string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command("bash", "-c", cmdStr)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.String(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.String(), err
	}
	if stderr.Len() > 0 {
		logger.Logger().Debugf("stderr: %s", strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// MockCommand describes one canned response. Pattern is a regular expression
// matched against the command line.
type MockCommand struct {
	Pattern string
	Output  string
	Error   error
}

// MockExecutor answers commands from a fixed list and records every call.
type MockExecutor struct {
	Commands []MockCommand
	Calls    []string
}

// NewMockExecutor returns a MockExecutor serving the given responses.
func NewMockExecutor(cmds []MockCommand) *MockExecutor {
	return &MockExecutor{Commands: cmds}
}

func (m *MockExecutor) Exec(cmdStr string) (string, error) {
	m.Calls = append(m.Calls, cmdStr)
	for _, c := range m.Commands {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			if strings.Contains(cmdStr, c.Pattern) {
				return c.Output, c.Error
			}
			continue
		}
		if re.MatchString(cmdStr) {
			return c.Output, c.Error
		}
	}
	return "", fmt.Errorf("no mock output for command: %s", cmdStr)
}

// IsCommandExist reports whether cmd resolves on the host PATH or in commandMap.
func IsCommandExist(cmd string) bool {
	if _, err := exec.LookPath(cmd); err == nil {
		return true
	}
	if full, ok := commandMap[cmd]; ok {
		if _, err := os.Stat(full); err == nil {
			return true
		}
	}
	return false
}

func verifyCmdWithFullPath(cmd string) (string, error) {
	separators := []string{"&&", "||", ";", "|"}

	sepIdx := -1
	sep := ""
	for _, s := range separators {
		if idx := strings.Index(cmd, s); idx != -1 && (sepIdx == -1 || idx < sepIdx) {
			sepIdx = idx
			sep = s
		}
	}
	if sepIdx != -1 {
		left, err := verifyCmdWithFullPath(strings.TrimSpace(cmd[:sepIdx]))
		if err != nil {
			return "", fmt.Errorf("failed to verify command: %w", err)
		}
		right, err := verifyCmdWithFullPath(strings.TrimSpace(cmd[sepIdx+len(sep):]))
		if err != nil {
			return "", fmt.Errorf("failed to verify command: %w", err)
		}
		return left + " " + sep + " " + right, nil
	}

	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return cmd, nil
	}
	fullPath, ok := commandMap[fields[0]]
	if !ok {
		return "", fmt.Errorf("command %s not found in commandMap", fields[0])
	}
	fields[0] = fullPath
	return strings.Join(fields, " "), nil
}

// GetFullCmdStr resolves every command in cmdStr to its pinned path and applies
// sudo and environment prefixes.
func GetFullCmdStr(cmdStr string, sudo bool, envVal []string) (string, error) {
	fullPathCmdStr, err := verifyCmdWithFullPath(cmdStr)
	if err != nil {
		return "", fmt.Errorf("failed to verify command with full path: %w", err)
	}

	envStr := ""
	if len(envVal) > 0 {
		envStr = strings.Join(envVal, " ") + " "
	}

	if sudo {
		logger.Logger().Debugf("Exec: [sudo %s]", fullPathCmdStr)
		return "sudo " + envStr + fullPathCmdStr, nil
	}
	logger.Logger().Debugf("Exec: [%s]", fullPathCmdStr)
	return envStr + fullPathCmdStr, nil
}

// ExecCmd runs cmdStr and returns its standard output. Output of failed
// commands is logged at info level.
func ExecCmd(cmdStr string, sudo bool, envVal []string) (string, error) {
	fullCmdStr, err := GetFullCmdStr(cmdStr, sudo, envVal)
	if err != nil {
		return "", fmt.Errorf("failed to get full command string: %w", err)
	}

	out, err := Default.Exec(fullCmdStr)
	if err != nil {
		if out != "" {
			logger.Logger().Infof("%s", out)
		}
		return out, fmt.Errorf("failed to exec %s: %w", fullCmdStr, err)
	}
	return out, nil
}

// ExecCmdSilent behaves like ExecCmd but never echoes command output.
func ExecCmdSilent(cmdStr string, sudo bool, envVal []string) (string, error) {
	fullCmdStr, err := GetFullCmdStr(cmdStr, sudo, envVal)
	if err != nil {
		return "", fmt.Errorf("failed to get full command string: %w", err)
	}

	out, err := Default.Exec(fullCmdStr)
	if err != nil {
		return out, fmt.Errorf("failed to exec %s: %w", fullCmdStr, err)
	}
	return out, nil
}

// Quote wraps s in single quotes for bash.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
