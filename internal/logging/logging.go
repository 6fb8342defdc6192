package logging

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how log lines are written
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	File   string // optional rotating log file, always JSON

	MaxSizeMB  int
	MaxBackups int
}

var (
	disabled atomic.Bool
	mu       sync.RWMutex
	logger   = newLogger(Config{Level: "info", Format: "console"}, zapcore.Lock(os.Stderr))
)

// Init replaces the global logger. Safe to call more than once.
func Init(cfg Config) {
	InitWithWriter(cfg, zapcore.Lock(os.Stderr))
}

// InitWithWriter is Init with an explicit console writer (used by tests)
func InitWithWriter(cfg Config, console zapcore.WriteSyncer) {
	l := newLogger(cfg, console)
	mu.Lock()
	old := logger
	logger = l
	mu.Unlock()
	_ = old.Sync()
}

func newLogger(cfg Config, console zapcore.WriteSyncer) *zap.SugaredLogger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	var consoleEnc zapcore.Encoder
	if cfg.Format == "json" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(consoleEnc, console, level)}

	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...)).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Disable turns off all logging
func Disable() {
	disabled.Store(true)
}

// Enable turns logging back on
func Enable() {
	disabled.Store(false)
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	_ = current().Sync()
}

// Info logs an info message
func Info(v ...any) {
	if !disabled.Load() {
		current().Info(v...)
	}
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	if !disabled.Load() {
		current().Infof(format, v...)
	}
}

// Error logs an error message
func Error(v ...any) {
	if !disabled.Load() {
		current().Error(v...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	if !disabled.Load() {
		current().Errorf(format, v...)
	}
}

// Warn logs a warning message
func Warn(v ...any) {
	if !disabled.Load() {
		current().Warn(v...)
	}
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	if !disabled.Load() {
		current().Warnf(format, v...)
	}
}

// Debug logs a debug message
func Debug(v ...any) {
	if !disabled.Load() {
		current().Debug(v...)
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	if !disabled.Load() {
		current().Debugf(format, v...)
	}
}

// Logger is a small handle that tags every line with key/value fields
type Logger struct {
	fields []any
}

// WithContext returns a Logger. The context carries no fields yet; kept for call-site symmetry.
func WithContext(ctx context.Context) Logger {
	return Logger{}
}

// With returns a Logger that appends the given key/value pairs to every line
func With(kv ...any) Logger {
	return Logger{fields: kv}
}

// Info logs an info message
func (l Logger) Info(msg string) {
	if !disabled.Load() {
		current().Infow(msg, l.fields...)
	}
}

// Infof logs a formatted info message
func (l Logger) Infof(format string, v ...any) {
	if !disabled.Load() {
		current().With(l.fields...).Infof(format, v...)
	}
}

// Debugf logs a formatted debug message
func (l Logger) Debugf(format string, v ...any) {
	if !disabled.Load() {
		current().With(l.fields...).Debugf(format, v...)
	}
}

// Warnf logs a formatted warning message
func (l Logger) Warnf(format string, v ...any) {
	if !disabled.Load() {
		current().With(l.fields...).Warnf(format, v...)
	}
}

// Error logs an error message
func (l Logger) Error(msg string) {
	if !disabled.Load() {
		current().Errorw(msg, l.fields...)
	}
}

// Errorf logs a formatted error message
func (l Logger) Errorf(format string, v ...any) {
	if !disabled.Load() {
		current().With(l.fields...).Errorf(format, v...)
	}
}
