package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ffexec/internal/process"
)

type stopCause int

const (
	causeNone stopCause = iota
	causeTimeout
	causeKilled
)

// Handle tracks one execution from claim to completion.
type Handle struct {
	id       string
	cmd      process.Command
	started  time.Time
	deadline time.Time

	pid       atomic.Int64
	completed atomic.Bool
	done      chan struct{}
	killCh    chan struct{}
	killOnce  sync.Once

	mu     sync.Mutex
	state  State
	cause  stopCause
	result CommandResult
}

func newHandle(id string, cmd process.Command, started time.Time, timeout time.Duration) *Handle {
	h := &Handle{
		id:      id,
		cmd:     cmd,
		started: started,
		state:   StateRunning,
		done:    make(chan struct{}),
		killCh:  make(chan struct{}),
	}
	if timeout > 0 {
		h.deadline = started.Add(timeout)
	}
	return h
}

// ID returns the unique execution identifier.
func (h *Handle) ID() string { return h.id }

// Command returns the command being executed.
func (h *Handle) Command() process.Command { return h.cmd }

// Started returns when the execution was accepted.
func (h *Handle) Started() time.Time { return h.started }

// Deadline returns the execution deadline. The zero time means none.
func (h *Handle) Deadline() time.Time { return h.deadline }

// PID returns the process id once spawned, or 0.
func (h *Handle) PID() int { return int(h.pid.Load()) }

// Completed reports whether a result has been produced.
func (h *Handle) Completed() bool { return h.completed.Load() }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done returns a channel closed after the result has been delivered.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the delivered result. The boolean is false until completion.
func (h *Handle) Result() (CommandResult, bool) {
	if !h.completed.Load() {
		return CommandResult{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, true
}

// Wait blocks until the result is delivered or ctx ends.
func (h *Handle) Wait(ctx context.Context) (CommandResult, error) {
	select {
	case <-h.done:
		result, _ := h.Result()
		return result, nil
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

// stop records the first reason the execution was interrupted.
func (h *Handle) stop(cause stopCause) {
	h.mu.Lock()
	if h.cause == causeNone {
		h.cause = cause
	}
	h.mu.Unlock()
	if cause == causeKilled {
		h.killOnce.Do(func() { close(h.killCh) })
	}
}

func (h *Handle) stopCause() stopCause {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cause
}

// finish stores the result. It returns false if a result was already set.
func (h *Handle) finish(result CommandResult, state State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.completed.Load() {
		return false
	}
	h.result = result
	h.state = state
	h.completed.Store(true)
	return true
}
