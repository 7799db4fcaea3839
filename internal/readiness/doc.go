// Package readiness runs an action once an executor has no command in flight.
//
// Waiter reacts to the executor's idle notification. PollingWaiter probes an
// IsRunning-style function on a fixed interval for sources that cannot
// notify. Both return an Observation that can be cancelled and that reports
// services.ErrTimeout when the executor stays busy past the timeout; the
// action is never invoked in that case.
package readiness
