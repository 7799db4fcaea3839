// Package executor runs at most one external command at a time.
//
// An Executor owns a single execution slot. Execute claims the slot, spawns the
// command on a background goroutine, and returns a Handle immediately; a second
// Execute while the slot is held fails with services.ErrAlreadyRunning instead
// of queueing. Each run is bounded by an optional deadline, can be killed, and
// reports a CommandResult exactly once through the Handler callbacks, the
// Handle's Done channel, and an optional Recorder.
//
// Idle exposes a channel closed whenever the slot is free so readiness
// observers can react to completion without polling.
package executor
