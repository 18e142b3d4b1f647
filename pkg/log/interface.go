// Package log provides a structured logging interface for binclass.
//
// The Logger interface is slog-compatible so the backend can be swapped; the
// default backend is zerolog (see provider.go). Attribute keys shared by the
// estimators, the evaluator and the HTTP layer live in attributes.go.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("evaluate").With(
//	    log.ModelNameKey, "SVC",
//	    log.EstimatorIDKey, runID,
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 6499,
//	    log.FeaturesKey, 22,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key-value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key-value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key-value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it is
	// attached as the error of the record, followed by key-value fields.
	//
	//   logger.Error("Model training failed",
	//       err,
	//       log.OperationKey, "fit",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
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

// LoggerProvider defines an interface for creating and configuring loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
