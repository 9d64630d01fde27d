// Package log provides the structured logging facade used across the
// dispatch and plant services.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by the standard
// library slog via a custom handler that routes records through the
// formatter/output pipeline, so output stays consistent regardless of which
// API produced the record.
//
// Quick start:
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.WithComponent("outbox")
//	l.Info("worker started", log.Int("poll_ms", 1000))
//
// Libraries that log through the standard library (Pebble does) can be
// redirected with RedirectStdLog.
package log
