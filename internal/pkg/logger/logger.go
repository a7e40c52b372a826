// Package logger provides structured logging using slog.
package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Config holds logger configuration.
type Config struct {
	Level   slog.Level
	JSON    bool
	Verbose bool

	// File routes records to a rotating log file instead of stdout.
	// The terminal progress UI needs stdout to itself while a migration runs.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Output overrides both stdout and File. Used by tests.
	Output io.Writer
}

// ParseLevel maps a config string to a slog level. Unknown values map to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger from cfg without touching the global instance.
func New(cfg Config) *slog.Logger {
	var handler slog.Handler

	level := cfg.Level
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Verbose,
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
		if cfg.File != "" {
			out = &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    orDefault(cfg.MaxSizeMB, 50),
				MaxBackups: orDefault(cfg.MaxBackups, 5),
				MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			}
		}
	}

	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) {
	Logger = New(cfg)
	slog.SetDefault(Logger)
}

// Default returns a basic default logger if Init hasn't been called.
func Default() *slog.Logger {
	if Logger == nil {
		Init(Config{Level: slog.LevelInfo})
	}
	return Logger
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// With returns a logger with additional attributes.
func With(args ...any) *slog.Logger {
	return Default().With(args...)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
