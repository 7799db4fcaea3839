// Package logs tails daemon run logs for the CLI.
//
// Tail prints the last lines of a file and, in follow mode, keeps polling for
// appended lines until the context ends. The daemon log pointer is a symlink
// that moves on every daemon start, so follow mode re-resolves the path and
// restarts from the top of the new file when the target changes or shrinks.
package logs
