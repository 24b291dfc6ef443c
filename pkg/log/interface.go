// Package log provides a structured logging interface for cluster expansion
// operations.
//
// The interface is slog-compatible so callers can plug in any backend; the
// default backend is zerolog (see provider.go); Setup can select a log/slog
// JSON backend instead (see logger.go). Components obtain a named
// logger once and attach stage attributes:
//
//	logger := log.GetLoggerWithName("tce.fit").With(
//	    log.OperationKey, log.OperationFit,
//	)
//	logger.Info("cross-validation finished",
//	    log.SamplesKey, 120,
//	    log.RegularizationKey, 1e-3,
//	)

package log

import (
	"context"
	"log/slog"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. If the first field passed to Error
// is an error value it is logged under the "error" key.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	// Use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Level makes Level a slog.Leveler.
func (l Level) Level() slog.Level { return slog.Level(l) }

// Format names a logging backend.
type Format string

const (
	// FormatZerolog writes zerolog JSON lines.
	FormatZerolog Format = "zerolog"
	// FormatSlog writes log/slog JSON records with cockroachdb stack traces
	// attached to error attributes.
	FormatSlog Format = "slog"
)

// ParseFormat converts a configuration string into a Format. The empty
// string means zerolog; unknown strings yield FormatZerolog and false.
func ParseFormat(s string) (Format, bool) {
	switch f := Format(s); f {
	case "", FormatZerolog:
		return FormatZerolog, true
	case FormatSlog:
		return FormatSlog, true
	default:
		return FormatZerolog, false
	}
}

// ParseLevel converts a configuration string ("debug", "info", "warn",
// "error") into a Level. Unknown strings yield LevelInfo and false.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// LoggerProvider creates and configures loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
