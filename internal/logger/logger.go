// Package logger sets up the process-wide slog logger. Level and format are
// driven by LOG_LEVEL and LOG_FORMAT so every package logs the same way.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[slog.Logger]

// Setup builds the default logger writing to stderr.
// Constraint: file handles and external log shipping are out of scope here.
func Setup() *slog.Logger {
	return SetupWriter(os.Stderr)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(os.Getenv("LOG_LEVEL")),
		AddSource: os.Getenv("LOG_ADD_SOURCE") == "true",
	}
	var h slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h)
	defaultLogger.Store(l)
	return l
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// L returns the default logger, initializing it on first use.
func L() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return Setup()
}
