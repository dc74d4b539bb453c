// Package logging assembles structured slog loggers and formatting helpers used
// across splice.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so session code can tag log
// lines with the active document id, the lifecycle operation, and correlation
// IDs. The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
