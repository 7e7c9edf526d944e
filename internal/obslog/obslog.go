package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// global logger, a no-op until Init
var globalLogger = zap.NewNop()

func L() *zap.Logger { return globalLogger }

// LogConfig selects the log sinks. The terminal belongs to the UI, so console
// output is off unless asked for.
type LogConfig struct {
	Level   string
	Format  string // legacy | json | console
	File    string
	Console bool
	Caller  bool
}

// Init builds the global logger. The returned closer flushes and closes the file.
func Init(cfg LogConfig) (func(), error) {
	level := parseLevel(cfg.Level)
	format := normalizeFormat(cfg.Format)

	var (
		cores []zapcore.Core
		file  *os.File
	)
	if path := strings.TrimSpace(cfg.File); path != "" {
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(f), level))
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(os.Stderr), level))
	}

	if len(cores) == 0 {
		globalLogger = zap.NewNop()
		return func() {}, nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if cfg.Caller || format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	globalLogger = logger

	return func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}, nil
}

func normalizeFormat(s string) string {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "json", "console":
		return f
	default:
		return "legacy"
	}
}

func encoderFor(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig())
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
