// Package fileutil holds the file primitives the session core relies on:
// verified copies, all-or-nothing project writes, and directory tree moves
// that fall back to a parallel copy when a rename crosses devices.
package fileutil
