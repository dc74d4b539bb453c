// Package services defines shared utilities consumed by the session core and
// its collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp document ids, lifecycle operation names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is (parse vs structural vs I/O vs conflicts).
package services
