package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// SetupLogger function setup logger.
// It configures the slog default (used by the HTTP server and the CLI) and the
// zerolog-backed provider returned by GetLogger at the same level.
func SetupLogger(loglevel string) {
	SetupLoggerTo(os.Stdout, loglevel)
}

// SetupLoggerTo is SetupLogger with an explicit destination.
func SetupLoggerTo(w io.Writer, loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
		// Replace attributes to convert to CloudLogging format.
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{
					Key:   "severity",
					Value: attr.Value,
				}
			case slog.MessageKey:
				attr = slog.Attr{
					Key:   "message",
					Value: attr.Value,
				}
			case slog.SourceKey:
				attr = slog.Attr{
					Key:   "logging.googleapis.com/sourceLocation",
					Value: attr.Value,
				}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(w, &ops)
	errFmtHandler := WrapByErrFmtHandler(handler)
	slog.SetDefault(slog.New(errFmtHandler))

	SetProvider(NewZerologProvider(w, Level(ToLogLevel(loglevel))))
	InstallWarningSink()
}

func ToLogLevel(level string) slog.Level {
	l, err := ParseLevel(level)
	if err != nil {
		panic(err.Error())
	}
	return slog.Level(l)
}

// ParseLevel converts a textual level ("debug", "info", "warn", "error") to a Level.
func ParseLevel(level string) (Level, error) {
	switch level {
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level :%s", level)
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
