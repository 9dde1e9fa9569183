// Package logging assembles structured slog loggers and formatting helpers used
// across lapsecam.
//
// It owns the console and JSON handlers, stamps records with the daemon run
// identifier, and exposes context helpers so the scheduler loop, retry
// controller, and capture adapter tag their lines with the same stream label
// and index. A no-op logger is provided for tests and wiring code.
//
// Log files are one per daemon run; CleanupOldLogs prunes runs older than the
// configured retention.
package logging
