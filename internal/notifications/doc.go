// Package notifications carries session lifecycle events.
//
// A Bus delivers events such as document_opened, load_progress and
// corruption_warning to in-process subscribers (CLI output, the external
// change watcher, tests). Selected events are also forwarded to ntfy using the
// topic configured in config.toml; without a topic the forwarder is a no-op.
package notifications
