// Package logger builds slog loggers with context-scoped attributes, secret
// redaction and optional Sentry fan-out.
//
// # Basic usage
//
//	log := logger.New(logger.Config{Level: "info", Format: "json"},
//		logger.RequestIDExtractor(),
//		logger.TaskIDExtractor(),
//	)
//
//	ctx = logger.WithTaskID(ctx, taskID)
//	log.InfoContext(ctx, "batch started", slog.Int("records", n))
//	// {"level":"INFO","msg":"batch started","records":3,"task_id":"..."}
//
// # Context extractors
//
// A ContextExtractor pulls a single attribute out of a context on every log
// call, so request- and task-scoped values never have to be threaded through
// With(). Extractors that return false are skipped for that record.
//
// # Redaction
//
// Attributes whose key contains "password", "secret", "token" or "api_key"
// are replaced with "[REDACTED]" before they reach any handler. Types that
// carry credentials should also implement slog.LogValuer.
//
// # Sentry
//
// NewWithSentry writes to stdout and, when a DSN is configured, forwards
// warnings and errors to Sentry through sentry-go/slog. Without a DSN, or
// if initialisation fails, it degrades to stdout only.
package logger
