package util

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logTimeFormat = "2006-01-02 15:04:05.000"

// LogOptions configures the process-wide logger.
type LogOptions struct {
	Level      string
	Verbose    bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	logMu  sync.RWMutex
	logger = zap.New(zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stdout), zapcore.InfoLevel)).Sugar()
)

// InitLogging replaces the global logger. The returned func flushes buffered entries.
func InitLogging(opts LogOptions) func() {
	level := ParseLevel(opts.Level)
	if opts.Verbose && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stdout), level),
	}
	if opts.File != "" {
		sink := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(fileEncoder(), zapcore.AddSync(sink), level))
	}
	l := zap.New(zapcore.NewTee(cores...)).Sugar()
	logMu.Lock()
	logger = l
	logMu.Unlock()
	return func() {
		_ = l.Sync()
	}
}

// ParseLevel maps a level name to a zap level; unknown names map to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func current() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// Infof logs an info message.
func Infof(format string, args ...any) {
	current().Infof(format, args...)
}

// Warnf logs a warning message.
func Warnf(format string, args ...any) {
	current().Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...any) {
	current().Errorf(format, args...)
}

// Highlightf logs a highlighted message.
func Highlightf(format string, args ...any) {
	current().With("note", true).Infof(format, args...)
}

// Detailf logs a message that is only shown in verbose mode.
func Detailf(format string, args ...any) {
	current().Debugf(format, args...)
}

func consoleEncoder() zapcore.Encoder {
	cfg := baseEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func fileEncoder() zapcore.Encoder {
	cfg := baseEncoderConfig()
	cfg.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + level.CapitalString() + "]")
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func baseEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout(logTimeFormat),
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
}
