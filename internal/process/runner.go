package process

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"ffexec/internal/logging"
	"ffexec/internal/services"
)

// Runner executes commands synchronously.
type Runner struct {
	TailBytes int
	Logger    *slog.Logger
}

// Run starts cmd, waits for it to exit, and returns the result. When ctx ends
// first the process group is killed and the result is marked TimedOut (for a
// deadline) or Killed (for cancellation).
func (r Runner) Run(ctx context.Context, cmd Command, env map[string]string, onLine func(string)) Result {
	logger := logging.WithContext(ctx, r.Logger)
	proc, failed, err := Start(cmd, Options{Env: env, OnLine: onLine, TailBytes: r.TailBytes})
	if err != nil {
		logger.Debug("process spawn failed",
			logging.String("command", cmd.String()),
			logging.Error(err),
			logging.String(logging.FieldEventType, "process_spawn_failed"))
		return failed
	}
	logger.Debug("process started",
		logging.String("command", cmd.String()),
		logging.Int("pid", proc.PID()),
		logging.String(logging.FieldEventType, "process_started"))

	done := make(chan struct{})
	stopped := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = proc.Kill()
			stopped <- ctx.Err()
		case <-done:
		}
	}()

	result := proc.Wait()
	close(done)
	wg.Wait()

	select {
	case cause := <-stopped:
		// A clean exit that raced the deadline keeps its success.
		if !result.Success {
			result = markStopped(result, cause)
		}
	default:
	}
	logger.Debug("process exited",
		logging.Int("pid", proc.PID()),
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("elapsed", result.Duration()),
		logging.String(logging.FieldEventType, "process_exited"))
	return result
}

func markStopped(result Result, cause error) Result {
	result.Success = false
	if errors.Is(cause, context.DeadlineExceeded) {
		result.TimedOut = true
		result.Err = services.Wrap(services.ErrTimeout, "process", "run", "deadline exceeded", nil)
		return result
	}
	result.Killed = true
	result.Err = services.Wrap(services.ErrKilled, "process", "run", "cancelled", cause)
	return result
}
