// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates executor results, journal entries, and dependency
// reports into transport-friendly DTOs so clients never depend on internal
// types.
//
// # Key Types
//
// Execution: one command run, whether in flight, delivered, or loaded from
// the journal.
//
// DaemonStatus: daemon running state, the in-flight execution, and
// dependency availability.
//
// # Converters
//
// FromHandle: executor.Handle -> Execution, using the delivered result when
// the handle has completed.
//
// FromResult and FromEntry cover delivered results and journal rows.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
package api
