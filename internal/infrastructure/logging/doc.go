// Package logging provides structured logging for Panel Core.
//
// It wraps log/slog with config-driven level, format, and output
// selection, and stamps every record with the service name and version.
// Component loggers are derived via With("component", name).
package logging
