// Package daemon coordinates the long-running ffexec process.
//
// It owns one ffmpeg Client (and through it one single-flight executor), the
// execution journal, and a flock-based lock that prevents multiple instances
// sharing a state directory. The daemon keeps a short in-memory index of
// recent handles so callers can poll results by ID; older results come from
// the journal.
//
// Keep orchestration here: execution semantics live in the executor and
// readiness packages while the daemon focuses on lifecycle and lookups.
package daemon
