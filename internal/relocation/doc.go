// Package relocation moves a project's data folder and computes the path
// rewrites that follow the move.
//
// A relocation is a two-phase task. Phase one runs on a worker goroutine:
// the data folder oldBase/<id> is moved into newBase through a Mover that
// reports progress. Phase two is the completion callback, which the session
// controller serializes onto its own lock before it rewrites the document:
// it applies the Patterns to the next save and reloads the project.
//
// The destination newBase/<id> must not exist. A conflict is reported as a
// *ConflictError before any I/O starts.
package relocation
