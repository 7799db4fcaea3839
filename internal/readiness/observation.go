package readiness

import (
	"context"
	"sync"
)

// Observation is one pending WhenReady request.
type Observation struct {
	done   chan struct{}
	cancel chan struct{}

	mu      sync.Mutex
	claimed bool
	err     error
	once    sync.Once
}

func newObservation() *Observation {
	return &Observation{
		done:   make(chan struct{}),
		cancel: make(chan struct{}),
	}
}

// Done returns a channel closed once the observation has finished, whether
// the action ran, the timeout expired, or it was cancelled.
func (o *Observation) Done() <-chan struct{} { return o.done }

// Err returns nil when the action ran, services.ErrTimeout or
// services.ErrCancelled otherwise. It is nil while the observation is pending.
func (o *Observation) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Wait blocks until the observation finishes or ctx ends.
func (o *Observation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the observation. The action will not be invoked afterwards.
// Cancelling after the action has started has no effect.
func (o *Observation) Cancel() {
	o.mu.Lock()
	if o.claimed {
		o.mu.Unlock()
		return
	}
	o.claimed = true
	o.err = errCancelled()
	o.mu.Unlock()
	o.once.Do(func() { close(o.cancel) })
	o.finish()
}

// run invokes action unless the observation was already settled.
func (o *Observation) run(action func()) bool {
	o.mu.Lock()
	if o.claimed {
		o.mu.Unlock()
		return false
	}
	o.claimed = true
	o.mu.Unlock()
	if action != nil {
		action()
	}
	o.finish()
	return true
}

// fail settles the observation with err unless it was already settled.
func (o *Observation) fail(err error) bool {
	o.mu.Lock()
	if o.claimed {
		o.mu.Unlock()
		return false
	}
	o.claimed = true
	o.err = err
	o.mu.Unlock()
	o.finish()
	return true
}

func (o *Observation) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	select {
	case <-o.done:
	default:
		close(o.done)
	}
}
