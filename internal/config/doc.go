// Package config loads, normalizes, and validates ffexec configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FFEXEC_BINARY. The Config type centralizes every knob the daemon and CLI
// need: where the media binary lives, default command deadlines, and where
// state, logs, and the daemon socket are kept.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, floor-checked timeouts, and clear validation errors.
package config
