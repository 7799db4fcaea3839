// Package journal persists completed executions in SQLite.
//
// The daemon attaches Store.Recorder to its executor so every delivered
// result becomes one row. Rows hold the argv, timing, outcome, exit code, and
// the tail of combined output; history and result lookups read from here
// after the in-memory handle is gone. Prune enforces retention.
package journal
