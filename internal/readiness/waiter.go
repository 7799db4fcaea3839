package readiness

import (
	"log/slog"
	"time"

	"ffexec/internal/logging"
	"ffexec/internal/services"
)

// IdleSource is implemented by executors that can announce when they are idle.
type IdleSource interface {
	Idle() <-chan struct{}
}

// Observer schedules actions for when an executor becomes ready.
type Observer interface {
	WhenReady(action func(), timeout time.Duration) *Observation
}

// Waiter observes an IdleSource.
type Waiter struct {
	source IdleSource
	logger *slog.Logger
}

// New returns a Waiter for source.
func New(source IdleSource, logger *slog.Logger) *Waiter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Waiter{source: source, logger: logging.NewComponentLogger(logger, "readiness")}
}

// WhenReady runs action once the source is idle. When the source is already
// idle the action runs before WhenReady returns. Otherwise it runs on a
// background goroutine, unless timeout elapses first or the observation is
// cancelled. A non-positive timeout waits until cancelled.
func (w *Waiter) WhenReady(action func(), timeout time.Duration) *Observation {
	obs := newObservation()
	idle := w.source.Idle()
	select {
	case <-idle:
		obs.run(action)
		return obs
	default:
	}

	go func() {
		var expired <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}
		for {
			select {
			case <-idle:
				// Another execution may have claimed the slot in between.
				next := w.source.Idle()
				select {
				case <-next:
					obs.run(action)
					return
				default:
					idle = next
				}
			case <-expired:
				if obs.fail(errTimeout(timeout)) {
					w.logger.Debug("readiness timeout",
						logging.Duration("timeout", timeout),
						logging.String(logging.FieldEventType, "readiness_timeout"))
				}
				return
			case <-obs.cancel:
				return
			}
		}
	}()
	return obs
}

func errTimeout(timeout time.Duration) error {
	return services.Wrap(services.ErrTimeout, "readiness", "when ready", "executor still busy after "+timeout.String(), nil)
}

func errCancelled() error {
	return services.Wrap(services.ErrCancelled, "readiness", "when ready", "", nil)
}
