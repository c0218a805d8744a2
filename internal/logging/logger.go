// Package logging defines the structured-logging interface used by the
// toukan client. The default implementation wraps log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "upload finished", "recording_id", id, "status", code)
type Logger interface {
	// Debug logs diagnostic detail that is normally filtered out.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Component returns a child logger tagged with the component name.
func Component(l Logger, name string) Logger {
	if l == nil {
		return Nop()
	}
	return l.With("component", name)
}
