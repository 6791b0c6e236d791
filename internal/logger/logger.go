// Package logger provides structured logging using log/slog. It sets up
// a JSON handler with service-level context and small helpers for
// attaching stock identity to log lines.
package logger

import (
	"log/slog"
	"os"
)

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// Stock returns slog attributes identifying one stock.
func Stock(id, symbol string) []any {
	return []any{slog.String("stock_id", id), slog.String("symbol", symbol)}
}
