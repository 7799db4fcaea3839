package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"ffexec/internal/api"
	"ffexec/internal/config"
	"ffexec/internal/deps"
	"ffexec/internal/executor"
	"ffexec/internal/ffmpeg"
	"ffexec/internal/journal"
	"ffexec/internal/logging"
	"ffexec/internal/services"
)

// recentLimit bounds the in-memory handle index.
const recentLimit = 64

// stopGrace bounds how long Stop waits for a killed command to report.
const stopGrace = 10 * time.Second

// Daemon owns the executor lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *ffmpeg.Client
	locator *deps.Locator
	journal *journal.Store

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.Mutex
	recent map[string]*executor.Handle
	order  []string

	api *apiServer
}

// New constructs a daemon. store may be nil when the journal is disabled.
func New(cfg *config.Config, client *ffmpeg.Client, locator *deps.Locator, store *journal.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || client == nil || locator == nil {
		return nil, errors.New("daemon requires config, client, and locator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		client:   client,
		locator:  locator,
		journal:  store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		recent:   make(map[string]*executor.Handle),
	}
	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = apiSrv
	return d, nil
}

// Start acquires the daemon lock, prunes the journal, and starts the
// optional HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ffexec daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return err
	}
	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.mu.Unlock()
	d.pruneJournal()

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("ffexec daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"))
	return nil
}

// Stop kills any in-flight command, stops the API, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	if d.client.Executor().KillAndWait(waitCtx) {
		d.logger.Info("in-flight command killed on shutdown",
			logging.String(logging.FieldEventType, "daemon_kill_on_stop"))
	}
	cancel()

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = nil, nil
	d.mu.Unlock()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file manually if the next start fails"))
	}
	d.running.Store(false)
	d.logger.Info("ffexec daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the journal.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// SubmitRequest describes one command for the daemon to run.
type SubmitRequest struct {
	Args    []string
	Env     map[string]string
	Timeout time.Duration
}

// Submit runs args through the ffmpeg client. The command is tied to the
// daemon lifetime rather than to the caller's request.
func (d *Daemon) Submit(ctx context.Context, req SubmitRequest) (*executor.Handle, error) {
	d.mu.Lock()
	runCtx := d.ctx
	d.mu.Unlock()
	if !d.running.Load() || runCtx == nil {
		return nil, errors.New("daemon is not running")
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		runCtx = services.WithRequestID(runCtx, id)
	}
	var opts []executor.ExecOption
	if req.Timeout > 0 {
		opts = append(opts, executor.WithTimeout(req.Timeout))
	}
	handle, err := d.client.Execute(runCtx, req.Env, req.Args, nil, opts...)
	if err != nil {
		return nil, err
	}
	d.remember(handle)
	return handle, nil
}

// Kill kills the in-flight command. It returns false when nothing was running.
func (d *Daemon) Kill() bool {
	return d.client.KillRunningProcesses()
}

// WaitReady blocks until no command is in flight, timeout elapses, or ctx ends.
func (d *Daemon) WaitReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = d.cfg.ReadyTimeout()
	}
	obs := d.client.WhenReady(func() {}, timeout)
	if err := obs.Wait(ctx); err != nil {
		obs.Cancel()
		return err
	}
	return nil
}

// Execution returns an in-memory or journaled execution by ID.
func (d *Daemon) Execution(ctx context.Context, id string) (api.Execution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return api.Execution{}, errors.New("execution id is required")
	}
	d.mu.Lock()
	handle := d.recent[id]
	d.mu.Unlock()
	if handle != nil {
		return api.FromHandle(handle), nil
	}
	if d.journal == nil {
		return api.Execution{}, services.Wrap(services.ErrNotFound, "daemon", "execution", "execution "+id, nil)
	}
	entry, err := d.journal.Get(ctx, id)
	if err != nil {
		return api.Execution{}, err
	}
	return api.FromEntry(*entry), nil
}

// Await blocks until the execution identified by id completes or ctx ends.
// Executions no longer held in memory are answered from the journal.
func (d *Daemon) Await(ctx context.Context, id string) (api.Execution, error) {
	id = strings.TrimSpace(id)
	d.mu.Lock()
	handle := d.recent[id]
	d.mu.Unlock()
	if handle == nil {
		return d.Execution(ctx, id)
	}
	if _, err := handle.Wait(ctx); err != nil {
		return api.FromHandle(handle), err
	}
	return api.FromHandle(handle), nil
}

// History lists journaled executions, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]api.Execution, error) {
	if d.journal == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "history", "journal disabled", nil)
	}
	entries, err := d.journal.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return api.FromEntries(entries), nil
}

// Version reports the device and library versions.
func (d *Daemon) Version(ctx context.Context) api.VersionInfo {
	return api.VersionInfo{
		Device:  d.client.DeviceVersion(ctx),
		Library: d.client.LibraryVersion(),
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) api.DaemonStatus {
	exec := d.client.Executor()
	binary := d.locator.Status()
	status := api.DaemonStatus{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		Busy:           exec.IsRunning(),
		TimeoutSeconds: int(exec.Timeout() / time.Second),
		LockFilePath:   d.lockPath,
		Dependencies:   api.FromDependencies([]deps.Status{binary}),
		LibraryVersion: d.client.LibraryVersion(),
	}
	if binary.Available {
		status.BinaryPath = binary.Command
	}
	if d.journal != nil {
		status.JournalPath = d.journal.Path()
	}
	if current := exec.Current(); current != nil {
		dto := api.FromHandle(current)
		status.Current = &dto
	}
	if !d.startedAt.IsZero() && status.Running {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
	}
	return status
}

func (d *Daemon) remember(handle *executor.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent[handle.ID()] = handle
	d.order = append(d.order, handle.ID())
	for len(d.order) > recentLimit {
		delete(d.recent, d.order[0])
		d.order = d.order[1:]
	}
}

func (d *Daemon) pruneJournal() {
	if d.journal == nil || d.cfg.Journal.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -d.cfg.Journal.RetentionDays)
	removed, err := d.journal.Prune(context.Background(), cutoff)
	if err != nil {
		logging.WarnWithContext(d.logger, "journal prune failed", "journal_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old executions remain in history"))
		return
	}
	if removed > 0 {
		d.logger.Info("journal pruned",
			logging.Int64("removed_count", removed),
			logging.String(logging.FieldEventType, "journal_pruned"))
	}
}
