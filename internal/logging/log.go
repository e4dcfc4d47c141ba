// Package logging holds the component-tagged slog logger shared by the
// codec packages and the command line tool.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Component identifiers.
const (
	ComponentStruct   Component = "struct"
	ComponentSource   Component = "source"
	ComponentRegistry Component = "registry"
	ComponentCLI      Component = "cli"
)

// Format specifies the output format for logging.
type Format int

// Log format options.
const (
	FormatText Format = iota // Text format (default)
	FormatJSON               // JSON format
)

var (
	// DefaultLogger is the logger used by all components.
	DefaultLogger *slog.Logger

	level = new(slog.LevelVar)

	mu sync.RWMutex
)

func init() {
	level.Set(slog.LevelWarn)
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// SetLevel sets the minimum log level.
func SetLevel(l slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(l)
}

// Level returns the current minimum log level.
func Level() slog.Level {
	mu.RLock()
	defer mu.RUnlock()
	return level.Level()
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Unknown names fall back to warn.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// SetLogger replaces the default logger.
func SetLogger(logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	DefaultLogger = logger
}

// SetFormat configures the default logger to write the given format to w.
func SetFormat(w io.Writer, format Format) {
	mu.Lock()
	defer mu.Unlock()
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		DefaultLogger = slog.New(slog.NewJSONHandler(w, opts))
	default:
		DefaultLogger = slog.New(slog.NewTextHandler(w, opts))
	}
}

func logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return DefaultLogger
}

// Debug logs a debug message with the given component.
func Debug(c Component, msg string, args ...any) {
	logger().Debug(msg, append([]any{"component", string(c)}, args...)...)
}

// Info logs an info message with the given component.
func Info(c Component, msg string, args ...any) {
	logger().Info(msg, append([]any{"component", string(c)}, args...)...)
}

// Warn logs a warning message with the given component.
func Warn(c Component, msg string, args ...any) {
	logger().Warn(msg, append([]any{"component", string(c)}, args...)...)
}

// Error logs an error message with the given component.
func Error(c Component, msg string, args ...any) {
	logger().Error(msg, append([]any{"component", string(c)}, args...)...)
}
