// Package logger wraps slog.Logger with the console/JSON handler split the
// rest of the service stack uses.
package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with contextual helpers.
type Logger struct {
	*slog.Logger
}

// New creates a logger. format "json" uses slog's JSON handler (for
// production log shipping); any other value uses tint for colored console
// output during local runs.
func New(level, format string) *Logger {
	var handler slog.Handler

	logLevel := parseLevel(level)

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithNetID returns a logger annotated with the net under verification.
func (l *Logger) WithNetID(netID string) *Logger {
	return &Logger{Logger: l.With("net_id", netID)}
}

// WithRunID returns a logger annotated with a simulation or verification run id.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{Logger: l.With("run_id", runID)}
}

// WithContext pulls a request id out of ctx, if present, and attaches it.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID := ctx.Value(ctxKeyRequestID); reqID != nil {
		return &Logger{Logger: l.With("request_id", reqID)}
	}
	return l
}

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// WithRequestID stores a request id on ctx for later retrieval by WithContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
