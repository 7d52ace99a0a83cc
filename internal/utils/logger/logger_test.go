package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// resetLogger resets the global logger state for testing
func resetLogger() {
	mu.Lock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	sugarLogger = nil
	baseLogger = nil
	atomicLevel = zap.AtomicLevel{}
	current = Config{}
	mu.Unlock()
	once = sync.Once{}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"DEBUG", zapcore.DebugLevel},
		{" error ", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerLazyInit(t *testing.T) {
	resetLogger()

	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	if atomicLevel.Level() != zapcore.InfoLevel {
		t.Errorf("default level = %v, want info", atomicLevel.Level())
	}
	if Logger() != l {
		t.Error("Logger() should return the same instance on repeated calls")
	}
}

func TestInitWithLevelAndSetLogLevel(t *testing.T) {
	resetLogger()

	_, cleanup := InitWithLevel("warn")
	defer cleanup()

	if atomicLevel.Level() != zapcore.WarnLevel {
		t.Fatalf("level = %v, want warn", atomicLevel.Level())
	}

	SetLogLevel("debug")
	if atomicLevel.Level() != zapcore.DebugLevel {
		t.Errorf("level after SetLogLevel = %v, want debug", atomicLevel.Level())
	}
	if current.Level != "debug" {
		t.Errorf("current.Level = %q, want debug", current.Level)
	}
}

func TestInitWithConfigFileTee(t *testing.T) {
	resetLogger()

	logPath := filepath.Join(t.TempDir(), "nested", "collector.log")
	sugar, cleanup, err := InitWithConfig(Config{Level: "info", FilePath: logPath})
	if err != nil {
		t.Fatalf("InitWithConfig() error = %v", err)
	}

	var buf bytes.Buffer
	old := ReplaceStderrWriter(&buf)
	defer ReplaceStderrWriter(old)

	sugar.Infof("generated advisory for %s", "zlib")
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "generated advisory for zlib") {
		t.Errorf("log file missing message, got: %s", data)
	}
	if !strings.Contains(buf.String(), "generated advisory for zlib") {
		t.Errorf("console missing message, got: %s", buf.String())
	}
}

func TestInitWithConfigReconfigures(t *testing.T) {
	resetLogger()

	_, cleanup1, err := InitWithConfig(Config{Level: "info"})
	if err != nil {
		t.Fatalf("first init: %v", err)
	}
	defer cleanup1()

	_, cleanup2, err := InitWithConfig(Config{Level: "error"})
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	defer cleanup2()

	if atomicLevel.Level() != zapcore.ErrorLevel {
		t.Errorf("level = %v, want error after reconfiguration", atomicLevel.Level())
	}
}

func TestWithAddsFields(t *testing.T) {
	resetLogger()
	_, cleanup := InitWithLevel("debug")
	defer cleanup()

	var buf bytes.Buffer
	old := ReplaceStderrWriter(&buf)
	defer ReplaceStderrWriter(old)

	With("package", "bash").Debugf("retrieving")
	if !strings.Contains(buf.String(), `"package": "bash"`) {
		t.Errorf("expected package field in output, got: %s", buf.String())
	}
}

func TestReplaceStderrWriterNil(t *testing.T) {
	old := ReplaceStderrWriter(nil)
	defer ReplaceStderrWriter(old)

	if console.writer != os.Stderr {
		t.Error("nil writer should fall back to os.Stderr")
	}
}
