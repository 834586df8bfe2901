// Package logging provides the structured logging facility used across the
// PersAI backend.
//
// It is a thin wrapper around log/slog with a calling convention that keeps
// log sites short: every message names the subsystem it originates from, and
// formatting happens lazily only when the level is enabled.
//
//	logging.Info("TokenValidator", "Cache hit for key=%s", key[:8])
//	logging.Error("Prometheus", err, "Request to %s failed", url)
//
// Init must be called once at startup (the serve command does this based on
// the LOG_LEVEL environment variable) before any other function in this
// package is used. Log calls made before Init are dropped.
//
// Token material must never be logged verbatim; use TruncateToken when a
// token needs to appear in a message for correlation.
package logging
