// Package watch reports modifications made to the bound project file by
// other programs.
//
// The monitor watches the file's parent directory (editors commonly replace
// files by rename) and coalesces bursts of events into one Change after a
// short quiet period. Filtering out the session's own writes is left to the
// handler, which compares Change.ModTime with the time it last saved.
package watch
