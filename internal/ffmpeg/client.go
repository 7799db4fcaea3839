package ffmpeg

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ffexec/internal/deps"
	"ffexec/internal/executor"
	"ffexec/internal/logging"
	"ffexec/internal/process"
	"ffexec/internal/readiness"
	"ffexec/internal/services"
)

// versionTimeout bounds the synchronous -version probe.
const versionTimeout = 15 * time.Second

// Client runs ffmpeg commands through a single-flight executor.
type Client struct {
	locator        *deps.Locator
	exec           *executor.Executor
	waiter         readiness.Observer
	runner         process.Runner
	libraryVersion string
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLibraryVersion records the ffmpeg build shipped alongside ffexec.
func WithLibraryVersion(version string) Option {
	return func(c *Client) { c.libraryVersion = strings.TrimSpace(version) }
}

// WithWaiter replaces the readiness observer. The default watches the
// executor's idle channel.
func WithWaiter(w readiness.Observer) Option {
	return func(c *Client) {
		if w != nil {
			c.waiter = w
		}
	}
}

// WithRunner sets the runner used for synchronous probes such as DeviceVersion.
func WithRunner(r process.Runner) Option {
	return func(c *Client) { c.runner = r }
}

// NewClient builds a Client around locator and exec.
func NewClient(locator *deps.Locator, exec *executor.Executor, opts ...Option) *Client {
	c := &Client{
		locator: locator,
		exec:    exec,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "ffmpeg")
	if c.waiter == nil {
		c.waiter = readiness.New(exec, c.logger)
	}
	if c.runner.Logger == nil {
		c.runner.Logger = c.logger
	}
	return c
}

// Execute runs the resolved binary with args. It fails synchronously with
// services.ErrEmptyCommand, services.ErrUnsupported, or
// services.ErrAlreadyRunning; everything else is reported through handler and
// the returned Handle. handler may be nil.
func (c *Client) Execute(ctx context.Context, env map[string]string, args []string, handler executor.Handler, opts ...executor.ExecOption) (*executor.Handle, error) {
	if len(args) == 0 {
		return nil, services.Wrap(services.ErrEmptyCommand, "ffmpeg", "execute", "no arguments", nil)
	}
	binary, err := c.locator.Resolve()
	if err != nil {
		return nil, err
	}

	tracker := &ProgressTracker{}
	sampler := logging.NewProgressSampler(10, 30*time.Second)
	logger := c.logger
	execOpts := []executor.ExecOption{
		executor.WithEnv(env),
		executor.WithOnLine(func(line string) {
			p, ok := tracker.Observe(line)
			if !ok || !sampler.ShouldLog(p.Percent, "") {
				return
			}
			attrs := []logging.Attr{
				logging.Duration("progress_time", p.Time),
				logging.String(logging.FieldEventType, "ffmpeg_progress"),
			}
			if p.Percent >= 0 {
				attrs = append(attrs, logging.Float64("progress_percent", p.Percent))
			}
			if p.Speed != "" {
				attrs = append(attrs, logging.String("progress_speed", p.Speed))
			}
			logging.WithContext(ctx, logger).Info("ffmpeg progress", logging.Args(attrs...)...)
		}),
	}
	if handler != nil {
		execOpts = append(execOpts, executor.WithHandler(handler))
	}
	execOpts = append(execOpts, opts...)
	return c.exec.Execute(ctx, process.NewCommand(binary, args...), execOpts...)
}

// DeviceVersion runs "<binary> -version" and returns the third space-separated
// token of its output, or "" when the binary cannot be run.
func (c *Client) DeviceVersion(ctx context.Context) string {
	binary, err := c.locator.Resolve()
	if err != nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	result := c.runner.Run(ctx, process.NewCommand(binary, "-version"), nil, nil)
	if !result.Success {
		c.logger.Debug("version probe failed",
			logging.String(logging.FieldEventType, "version_probe_failed"),
			logging.Error(result.Err))
		return ""
	}
	fields := strings.Split(result.Output, " ")
	if len(fields) < 3 {
		return ""
	}
	return fields[2]
}

// LibraryVersion returns the ffmpeg build shipped with ffexec.
func (c *Client) LibraryVersion() string {
	return c.libraryVersion
}

// IsCommandRunning reports whether a command is in flight.
func (c *Client) IsCommandRunning() bool {
	return c.exec.IsRunning()
}

// KillRunningProcesses kills the in-flight command. It returns false when
// nothing was running.
func (c *Client) KillRunningProcesses() bool {
	return c.exec.Kill()
}

// SetTimeout sets the default command deadline. Values below
// executor.MinimumTimeout are ignored.
func (c *Client) SetTimeout(d time.Duration) bool {
	return c.exec.SetTimeout(d)
}

// WhenReady runs action once no command is in flight.
func (c *Client) WhenReady(action func(), timeout time.Duration) *readiness.Observation {
	return c.waiter.WhenReady(action, timeout)
}

// Executor exposes the underlying executor.
func (c *Client) Executor() *executor.Executor {
	return c.exec
}
