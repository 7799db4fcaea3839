package executor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ffexec/internal/logging"
	"ffexec/internal/process"
	"ffexec/internal/services"
)

const (
	// MinimumTimeout is the smallest deadline accepted by SetTimeout and WithTimeout.
	MinimumTimeout = 10 * time.Second
	// killGrace is how long a killed process group may take to exit after
	// SIGTERM before it is sent SIGKILL.
	killGrace = 5 * time.Second
)

// Executor runs one command at a time.
type Executor struct {
	logger     *slog.Logger
	tailBytes  int
	minTimeout time.Duration
	killGrace  time.Duration
	recorder   Recorder

	running atomic.Bool

	mu             sync.Mutex
	current        *Handle
	draining       *Handle
	idle           chan struct{}
	defaultTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTailBytes bounds how much combined output is kept per result.
func WithTailBytes(n int) Option {
	return func(e *Executor) { e.tailBytes = n }
}

// WithMinimumTimeout lowers or raises the timeout floor. Intended for tests.
func WithMinimumTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.minTimeout = d
		}
	}
}

// WithKillGrace sets how long a killed process may linger before SIGKILL.
func WithKillGrace(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.killGrace = d
		}
	}
}

// WithRecorder attaches a Recorder notified after every completion.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// New builds an idle executor.
func New(opts ...Option) *Executor {
	idle := make(chan struct{})
	close(idle)
	e := &Executor{
		logger:     logging.NewNop(),
		minTimeout: MinimumTimeout,
		killGrace:  killGrace,
		idle:       idle,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "executor")
	return e
}

type execSettings struct {
	timeout time.Duration
	env     map[string]string
	handler Handler
	onLine  func(string)
}

// ExecOption configures a single Execute call.
type ExecOption func(*execSettings)

// WithTimeout overrides the default deadline for one call. Values below the
// executor's minimum fall back to the default.
func WithTimeout(d time.Duration) ExecOption {
	return func(s *execSettings) { s.timeout = d }
}

// WithEnv overlays environment variables on the inherited environment.
func WithEnv(env map[string]string) ExecOption {
	return func(s *execSettings) {
		if len(env) == 0 {
			return
		}
		s.env = make(map[string]string, len(env))
		for k, v := range env {
			s.env[k] = v
		}
	}
}

// WithHandler attaches lifecycle callbacks.
func WithHandler(h Handler) ExecOption {
	return func(s *execSettings) { s.handler = h }
}

// WithOnLine streams each line of combined output to fn.
func WithOnLine(fn func(string)) ExecOption {
	return func(s *execSettings) { s.onLine = fn }
}

// Execute claims the execution slot and starts cmd in the background.
//
// It fails synchronously with services.ErrEmptyCommand for an empty command
// and services.ErrAlreadyRunning while another execution is in flight. All
// other failures, including spawn errors, arrive through the result.
// Cancelling ctx kills the execution.
func (e *Executor) Execute(ctx context.Context, cmd process.Command, opts ...ExecOption) (*Handle, error) {
	if cmd.Empty() {
		return nil, services.Wrap(services.ErrEmptyCommand, "executor", "execute", "", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var settings execSettings
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.handler == nil {
		settings.handler = HandlerFuncs{}
	}

	e.mu.Lock()
	if e.current != nil && !e.current.Completed() {
		id := e.current.ID()
		e.mu.Unlock()
		return nil, services.Wrap(services.ErrAlreadyRunning, "executor", "execute", "execution "+id+" in flight", nil)
	}
	timeout := e.defaultTimeout
	if settings.timeout >= e.minTimeout {
		timeout = settings.timeout
	}
	handle := newHandle(uuid.NewString(), cmd, time.Now(), timeout)
	e.current = handle
	e.idle = make(chan struct{})
	e.running.Store(true)
	e.mu.Unlock()

	ctx = services.WithExecutionID(ctx, handle.ID())
	logger := logging.WithContext(ctx, e.logger)
	attrs := []logging.Attr{
		logging.String("command", cmd.String()),
		logging.String(logging.FieldEventType, "execution_accepted"),
	}
	if timeout > 0 {
		attrs = append(attrs, logging.Duration("timeout", timeout))
	}
	logger.Info("execution accepted", logging.Args(attrs...)...)

	go e.run(ctx, logger, handle, settings)
	return handle, nil
}

// IsRunning reports whether an uncompleted execution holds the slot.
func (e *Executor) IsRunning() bool {
	return e.running.Load()
}

// State returns StateRunning while the slot is held and StateIdle otherwise.
func (e *Executor) State() State {
	if e.running.Load() {
		return StateRunning
	}
	return StateIdle
}

// Current returns the in-flight handle, or nil when idle.
func (e *Executor) Current() *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.Completed() {
		return nil
	}
	return e.current
}

// Idle returns a channel that is closed once the executor has no execution in
// flight. The channel is already closed when the executor is idle.
func (e *Executor) Idle() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idle
}

// Kill sends SIGTERM to the running process group and frees the slot. It
// returns false when nothing was running. Kill does not wait for the process
// to exit; the handle still delivers a killed result once it does.
func (e *Executor) Kill() bool {
	handle := e.release(nil)
	if handle == nil {
		return false
	}
	handle.stop(causeKilled)
	e.logger.Info("execution kill requested",
		logging.String(logging.FieldExecutionID, handle.ID()),
		logging.String(logging.FieldEventType, "execution_kill_requested"))
	return true
}

// KillAndWait kills the running execution and blocks until its result has
// been delivered. An execution that already gave up the slot but has not yet
// exited is waited for too. It returns false when nothing was running or ctx
// ended first.
func (e *Executor) KillAndWait(ctx context.Context) bool {
	e.mu.Lock()
	handle := e.releaseLocked(nil)
	if handle == nil {
		handle = e.draining
	}
	e.mu.Unlock()
	if handle == nil {
		return false
	}
	handle.stop(causeKilled)
	select {
	case <-handle.Done():
		return true
	case <-ctx.Done():
		return false
	}
}

// SetTimeout sets the default deadline for future executions. Durations below
// the minimum are ignored and the previous value is kept.
func (e *Executor) SetTimeout(d time.Duration) bool {
	if d < e.minTimeout {
		e.logger.Debug("timeout below minimum ignored",
			logging.Duration("requested", d),
			logging.Duration("minimum", e.minTimeout),
			logging.String(logging.FieldEventType, "timeout_rejected"))
		return false
	}
	e.mu.Lock()
	e.defaultTimeout = d
	e.mu.Unlock()
	return true
}

// Timeout returns the default deadline. Zero means none.
func (e *Executor) Timeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defaultTimeout
}

// release frees the slot. With a nil want it releases whatever uncompleted
// handle holds the slot; otherwise only want.
func (e *Executor) release(want *Handle) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releaseLocked(want)
}

func (e *Executor) releaseLocked(want *Handle) *Handle {
	handle := e.current
	if handle == nil || (want != nil && handle != want) {
		return nil
	}
	if want == nil && handle.Completed() {
		return nil
	}
	e.current = nil
	if !handle.Completed() {
		e.draining = handle
	}
	e.running.Store(false)
	close(e.idle)
	return handle
}

func (e *Executor) run(ctx context.Context, logger *slog.Logger, handle *Handle, settings execSettings) {
	handler := settings.handler
	handler.OnStart()

	select {
	case <-handle.killCh:
		now := time.Now()
		e.complete(logger, handle, settings, process.Result{
			ExitCode: -1,
			Output:   "killed before start",
			Started:  now,
			Finished: now,
		})
		return
	default:
	}

	onLine := func(line string) {
		handler.OnProgress(line)
		if settings.onLine != nil {
			settings.onLine(line)
		}
	}
	proc, failed, err := process.Start(handle.Command(), process.Options{
		Env:       settings.env,
		OnLine:    onLine,
		TailBytes: e.tailBytes,
	})
	if err != nil {
		logger.Warn("execution spawn failed",
			logging.String(logging.FieldEventType, "execution_spawn_failed"),
			logging.String(logging.FieldErrorHint, "check the binary path and permissions"),
			logging.Error(err))
		e.complete(logger, handle, settings, failed)
		return
	}
	handle.pid.Store(int64(proc.PID()))
	logger.Debug("process spawned",
		logging.Int("pid", proc.PID()),
		logging.String(logging.FieldEventType, "execution_spawned"))

	exited := make(chan process.Result, 1)
	go func() { exited <- proc.Wait() }()

	var deadlineC <-chan time.Time
	if deadline := handle.Deadline(); !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		deadlineC = timer.C
	}
	var grace *time.Timer
	defer func() {
		if grace != nil {
			grace.Stop()
		}
	}()
	var graceC <-chan time.Time
	killCh := handle.killCh
	ctxDone := ctx.Done()

	for {
		select {
		case res := <-exited:
			e.complete(logger, handle, settings, res)
			return
		case <-deadlineC:
			deadlineC = nil
			handle.stop(causeTimeout)
			logger.Warn("execution deadline exceeded",
				logging.Int("pid", proc.PID()),
				logging.String(logging.FieldEventType, "execution_timeout"),
				logging.String(logging.FieldImpact, "process group killed"))
			_ = proc.Kill()
		case <-ctxDone:
			ctxDone = nil
			e.release(handle)
			handle.stop(causeKilled)
		case <-killCh:
			killCh = nil
			if err := proc.Terminate(); err != nil {
				logger.Warn("terminate failed",
					logging.Int("pid", proc.PID()),
					logging.String(logging.FieldEventType, "execution_terminate_failed"),
					logging.Error(err))
			}
			grace = time.NewTimer(e.killGrace)
			graceC = grace.C
		case <-graceC:
			graceC = nil
			_ = proc.Kill()
		}
	}
}

func (e *Executor) complete(logger *slog.Logger, handle *Handle, settings execSettings, res process.Result) {
	state := StateFailed
	err := res.Err
	switch cause := handle.stopCause(); {
	case res.Success:
		// A process that exited cleanly before a signal landed keeps its success.
		state = StateSucceeded
		err = nil
	case cause == causeTimeout:
		state = StateTimedOut
		err = services.Wrap(services.ErrTimeout, "executor", "execute", "deadline exceeded", nil)
	case cause == causeKilled:
		state = StateKilled
		err = services.Wrap(services.ErrKilled, "executor", "execute", "killed", nil)
	}

	result := CommandResult{
		ID:       handle.ID(),
		Command:  handle.Command(),
		Success:  state == StateSucceeded,
		Output:   res.Output,
		ExitCode: res.ExitCode,
		Outcome:  outcomeFor(state),
		Err:      err,
		Started:  handle.Started(),
		Finished: res.Finished,
	}
	if result.Finished.IsZero() {
		result.Finished = time.Now()
	}
	e.mu.Lock()
	if !handle.finish(result, state) {
		e.mu.Unlock()
		return
	}
	e.releaseLocked(handle)
	if e.draining == handle {
		e.draining = nil
	}
	e.mu.Unlock()

	attrs := []logging.Attr{
		logging.String("outcome", string(result.Outcome)),
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("elapsed", result.Duration()),
		logging.String(logging.FieldEventType, "execution_completed"),
	}
	if result.Success {
		logger.Info("execution completed", logging.Args(attrs...)...)
		settings.handler.OnSuccess(result)
	} else {
		attrs = append(attrs, logging.Error(result.Err))
		logger.Info("execution completed", logging.Args(attrs...)...)
		settings.handler.OnFailure(result)
	}
	settings.handler.OnFinish()
	if e.recorder != nil {
		e.recorder.OnComplete(result)
	}
	close(handle.done)
}
