// Package logger provides structured logging functionality for the application.
//
// It configures a log/slog handler (JSON by default, text on request) at the
// configured level and carries request-scoped loggers through context.Context.
package logger
