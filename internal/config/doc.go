// Package config loads, normalizes, and validates splice configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SPLICE_NTFY_TOPIC. The Config type centralizes every knob the session core
// and CLI need: where untitled projects live, where autosave companions and
// backups are written, the cache folder policy, and autosave timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
