// Package history persists the recent-projects list and the backup catalog in
// a small SQLite database.
//
// The database lives in the data directory and is guarded by an advisory file
// lock so only one process writes it at a time. Schema creation follows a
// single embedded schema.sql with a version row; a version mismatch is
// reported as ErrSchemaMismatch rather than migrated.
package history
