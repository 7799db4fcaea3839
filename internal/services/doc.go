// Package services defines shared utilities consumed by the executor, the
// daemon, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp execution IDs and correlation identifiers for
//     logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified with errors.Is (synchronous preconditions vs asynchronous
//     results).
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform.
package services
