package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the verbosity and an optional file the console output is teed to.
type Config struct {
	Level    string
	FilePath string
}

// swappableWriter lets tests capture console output without rebuilding the logger.
type swappableWriter struct {
	mu     sync.RWMutex
	writer io.Writer
}

func (w *swappableWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.writer == nil {
		return len(p), nil
	}
	return w.writer.Write(p)
}

func (w *swappableWriter) Sync() error {
	return nil
}

var (
	mu          sync.RWMutex
	once        sync.Once
	sugarLogger *zap.SugaredLogger
	baseLogger  *zap.Logger
	atomicLevel zap.AtomicLevel
	logFile     *os.File
	current     Config
	console     = &swappableWriter{writer: os.Stderr}
)

func apply(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	level := parseLevel(cfg.Level)
	if atomicLevel == (zap.AtomicLevel{}) {
		atomicLevel = zap.NewAtomicLevelAt(level)
	} else {
		atomicLevel.SetLevel(level)
	}

	encoderCfg := zap.NewDevelopmentConfig().EncoderConfig
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(console), atomicLevel),
	}

	filePath := strings.TrimSpace(cfg.FilePath)
	if filePath != "" {
		core, handle, err := fileCore(encoderCfg, filePath)
		if err != nil {
			return err
		}
		if logFile != nil && logFile != handle {
			_ = logFile.Close()
		}
		logFile = handle
		cores = append(cores, core)
	} else if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	baseLogger = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	sugarLogger = baseLogger.Sugar()
	zap.ReplaceGlobals(baseLogger)

	current = Config{Level: level.String(), FilePath: filePath}
	return nil
}

func fileCore(encoderCfg zapcore.EncoderConfig, path string) (zapcore.Core, *os.File, error) {
	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory %q: %w", dir, err)
		}
	}

	file, err := os.OpenFile(cleaned, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %q: %w", cleaned, err)
	}

	plain := encoderCfg
	plain.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(plain), zapcore.AddSync(file), atomicLevel), file, nil
}

// InitWithConfig installs the process logger. Calling it again with a different
// configuration reconfigures the existing logger in place.
func InitWithConfig(cfg Config) (*zap.SugaredLogger, func(), error) {
	requested := Config{Level: parseLevel(cfg.Level).String(), FilePath: strings.TrimSpace(cfg.FilePath)}

	var initErr error
	fresh := false
	once.Do(func() {
		initErr = apply(cfg)
		fresh = true
	})
	if initErr != nil {
		return nil, nil, fmt.Errorf("logger initialization failed: %w", initErr)
	}

	if !fresh {
		mu.RLock()
		same := current == requested
		mu.RUnlock()
		if !same {
			if err := apply(cfg); err != nil {
				return nil, nil, fmt.Errorf("logger reconfiguration failed: %w", err)
			}
		}
	}

	mu.RLock()
	defer mu.RUnlock()
	return sugarLogger, cleanupFunc(logFile), nil
}

// InitWithLevel sets up the logger with a level and no file output.
func InitWithLevel(level string) (*zap.SugaredLogger, func()) {
	sugar, cleanup, err := InitWithConfig(Config{Level: level})
	if err != nil {
		panic(fmt.Sprintf("logger initialization failed: %v", err))
	}
	return sugar, cleanup
}

// Logger returns the process logger, initializing it at info level on first use.
func Logger() *zap.SugaredLogger {
	once.Do(func() {
		if err := apply(Config{Level: "info"}); err != nil {
			panic(fmt.Sprintf("logger initialization failed: %v", err))
		}
	})

	mu.RLock()
	defer mu.RUnlock()
	return sugarLogger
}

// With returns a child logger carrying the given key/value pairs.
func With(args ...interface{}) *zap.SugaredLogger {
	return Logger().With(args...)
}

func cleanupFunc(file *os.File) func() {
	return func() {
		mu.Lock()
		defer mu.Unlock()

		if baseLogger != nil {
			_ = baseLogger.Sync()
		}
		if file != nil {
			if err := file.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
			}
			if logFile == file {
				logFile = nil
			}
		}
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLogLevel changes the level of an initialized logger.
func SetLogLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	if atomicLevel == (zap.AtomicLevel{}) {
		return
	}
	l := parseLevel(level)
	atomicLevel.SetLevel(l)
	current.Level = l.String()
}

// ReplaceStderrWriter swaps the console writer and returns the previous one.
func ReplaceStderrWriter(newOut io.Writer) io.Writer {
	if newOut == nil {
		newOut = os.Stderr
	}

	console.mu.Lock()
	defer console.mu.Unlock()

	old := console.writer
	if old == nil {
		old = os.Stderr
	}
	console.writer = newOut
	return old
}
