// Package logger is the shared slog setup for bunsearch, matching the
// conventions of the other bunbase services.
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	once sync.Once
	base *slog.Logger
)

// Config holds logger configuration
type Config struct {
	Level     string // DEBUG, INFO, WARN, ERROR
	Format    string // json, text
	AddSource bool
}

// Init initializes the global logger. Safe to call more than once; only the
// first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		var level slog.Level
		switch cfg.Level {
		case "DEBUG":
			level = slog.LevelDebug
		case "WARN":
			level = slog.LevelWarn
		case "ERROR":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		}

		var handler slog.Handler
		if cfg.Format == "text" {
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		}

		base = slog.New(handler)
		slog.SetDefault(base)
	})
}

// Get returns the global logger, initializing a default one if needed.
func Get() *slog.Logger {
	if base == nil {
		Init(Config{Level: "INFO", Format: "json"})
	}
	return base
}

// Component returns a logger tagged with a component name, e.g.
// logger.Component("engine") or logger.Component("adapter.pg").
func Component(name string) *slog.Logger {
	return Get().With("component", name)
}

// Helper functions for quick logging
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}
