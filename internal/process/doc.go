// Package process spawns external binaries and captures their output.
//
// Command is the immutable argv value passed around the rest of ffexec.
// Start launches a command in its own process group and returns a Process
// that can be terminated (SIGTERM) or killed (SIGKILL) as a group, and whose
// Wait returns a Result with the combined stdout/stderr tail and exit code.
// Runner wraps Start/Wait into a blocking call bounded by a context.
//
// Spawn failures never surface as Go errors from Run: they are reported as a
// Result with Success=false, ExitCode=-1, and a diagnostic in Output, tagged
// with services.ErrSpawn. Nothing here retries.
package process
