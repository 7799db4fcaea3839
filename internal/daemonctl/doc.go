// Package daemonctl holds the CLI-side daemon lifecycle helpers: launching a
// detached daemon, stopping it by signal with a forced-kill fallback, and
// building a status snapshot that still works when the daemon is offline.
package daemonctl
