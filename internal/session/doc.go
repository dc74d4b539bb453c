// Package session owns the single active project document.
//
// Controller drives the document through new, open, save, autosave, close,
// revert, backup and relocation. Every lifecycle operation holds the
// controller lock for its whole duration and a second operation arriving
// meanwhile is rejected with ErrBusy rather than interleaved. Background
// work (the autosave timer, the folder move, the file watcher) reports back
// by taking the same lock, so its effects are applied after whatever
// operation is running.
//
// Opening a project follows a fixed sequence: archive unpack, close of the
// current document, stale companion detection, strict parse, timeline build.
// A parse or structural failure hands control to the Prompter, which can pick
// a backup, ask for a lenient parse, or give up; giving up leaves a fresh
// blank document active so callers always have something to work on.
package session
