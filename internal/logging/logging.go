// Package logging provides a context-carried slog logger, with a
// per-component child-logger convention used throughout the rest of the
// module.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type contextKey string

const loggerKey contextKey = "dwnLogger"

// WithLogger attaches a logger to ctx, writing to logFilePath if set, else stdout.
func WithLogger(ctx context.Context, logFilePath string, verbose bool) context.Context {
	return context.WithValue(ctx, loggerKey, New(logFilePath, verbose))
}

// New builds a standalone logger writing to logFilePath if set, else stdout.
func New(logFilePath string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(output(logFilePath), &slog.HandlerOptions{Level: level}))
}

func output(logFilePath string) *os.File {
	if logFilePath == "" {
		return os.Stdout
	}

	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open log file, defaulting to stdout", "error", err, "path", logFilePath)

		return os.Stdout
	}

	return file
}

// FromContext retrieves the logger attached to ctx, falling back to a default stdout logger.
func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerKey).(*slog.Logger)
	if !ok {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	return logger
}

// Named returns a package-scoped logger, e.g. for a top-level `var logger = logging.Named("storage")`.
func Named(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
