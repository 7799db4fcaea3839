package readiness

import "time"

const defaultPollInterval = 100 * time.Millisecond

// PollingWaiter checks a running probe on a fixed interval.
type PollingWaiter struct {
	running  func() bool
	interval time.Duration
}

// NewPollingWaiter returns a waiter that calls running every interval until
// it reports false.
func NewPollingWaiter(running func() bool, interval time.Duration) *PollingWaiter {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &PollingWaiter{running: running, interval: interval}
}

// WhenReady behaves like Waiter.WhenReady but detects idleness by polling.
func (p *PollingWaiter) WhenReady(action func(), timeout time.Duration) *Observation {
	obs := newObservation()
	if !p.running() {
		obs.run(action)
		return obs
	}

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		var expired <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}
		for {
			select {
			case <-ticker.C:
				if !p.running() {
					obs.run(action)
					return
				}
			case <-expired:
				obs.fail(errTimeout(timeout))
				return
			case <-obs.cancel:
				return
			}
		}
	}()
	return obs
}
