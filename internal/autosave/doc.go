// Package autosave schedules background persistence of the active document.
//
// A Scheduler owns one single-shot timer. Every edit notification (Touch)
// re-arms it with the debounce window; when more than the force threshold
// has passed since the last successful save, the edit triggers a save
// immediately instead. Only one save runs at a time: edits that arrive while
// a save is in flight are remembered and re-arm the timer once it returns. A
// save that reports ErrBusy is re-armed rather than dropped.
package autosave
