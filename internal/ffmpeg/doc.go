// Package ffmpeg is the caller-facing facade over the locator, executor, and
// readiness waiter.
//
// A Client is an explicit value owned by the composing application; there is
// no process-wide instance. Execute prepends the resolved binary to the
// caller's arguments, so callers pass ffmpeg arguments only.
//
// The package also parses ffmpeg's stderr progress lines ("Duration:" and
// "time=") into Progress values for logging and the CLI.
package ffmpeg
