package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// zerologLogger adapts zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

// Debug implements Logger.Debug.
func (l *zerologLogger) Debug(msg string, fields ...any) { emit(l.zl.Debug(), msg, fields) }

// Info implements Logger.Info.
func (l *zerologLogger) Info(msg string, fields ...any) { emit(l.zl.Info(), msg, fields) }

// Warn implements Logger.Warn.
func (l *zerologLogger) Warn(msg string, fields ...any) { emit(l.zl.Warn(), msg, fields) }

// Error implements Logger.Error.
func (l *zerologLogger) Error(msg string, fields ...any) { emit(l.zl.Error(), msg, fields) }

// With implements Logger.With.
func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger()}
}

// Enabled implements Logger.Enabled.
func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

func emit(e *zerolog.Event, msg string, fields []any) {
	// zerolog returns a nil event for disabled levels.
	if e == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = e.Err(err)
			var m zerolog.LogObjectMarshaler
			if errors.As(err, &m) {
				e = e.Object(ErrorDetailKey, m)
			}
			fields = fields[1:]
		}
	}
	if len(fields) > 0 {
		e = e.Fields(normalizeFields(fields))
	}
	e.Msg(msg)
}

// normalizeFields turns error values into strings so they render as text
// instead of empty JSON objects.
func normalizeFields(fields []any) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		if err, ok := f.(error); ok && i%2 == 1 {
			out[i] = err.Error()
			continue
		}
		out[i] = f
	}
	return out
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ZerologProvider is the default LoggerProvider, writing JSON lines through zerolog.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider creates a provider that writes to w at the given level.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	base := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &ZerologProvider{base: base}
}

// NewConsoleProvider creates a provider with zerolog's human-readable console output.
func NewConsoleProvider(w io.Writer, level Level) *ZerologProvider {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return NewZerologProvider(cw, level)
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

var (
	providerMu      sync.RWMutex
	defaultProvider LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo)
)

// SetProvider replaces the process-wide provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	defaultProvider = p
}

// GetLogger returns the default logger of the process-wide provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns a component logger of the process-wide provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLoggerWithName(name)
}

// InstallWarningSink routes errors.Warn through the current provider.
func InstallWarningSink() {
	errors.SetZerologWarnFunc(func(w error) {
		GetLoggerWithName("warnings").Warn(w.Error(), ErrorTypeKey, fmt.Sprintf("%T", w))
	})
}
