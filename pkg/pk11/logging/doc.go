// Package logging provides the logging facade used by pk11.
//
// Logger wraps the context-aware methods of log/slog. The library logs
// lifecycle events of the native library (initialization, shutdown and
// refused shutdowns); it never logs key material.
//
//	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
//	err := pk11.Configure(pk11.Config{Logger: logging.New(slog.New(handler))})
//
// Passing nil to New binds to slog.Default(). Discard drops everything.
//
// # Redaction
//
// Use Redacted to record that a sensitive attribute was intentionally
// omitted:
//
//	logger.Info(ctx, "token login", "slot", id, logging.Redacted("pin"))
//	// Logs: pin="[redacted]"
package logging
