// Package recovery manages autosave companions and stale-state detection.
//
// Every active document owns a Companion: a recovery file in the stale
// directory named after an md5 of the NFC-normalized project filename plus a
// per-instance suffix, and a sibling lock file held with an advisory flock
// for as long as the document is active. The lock is the only cross-process
// signal. A companion whose lock can be acquired belongs to a process that
// is gone and is a stale candidate; a companion whose lock is held belongs to
// a running instance and is never touched.
package recovery
