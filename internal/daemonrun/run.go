package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"ffexec/internal/config"
	"ffexec/internal/daemon"
	"ffexec/internal/deps"
	"ffexec/internal/executor"
	"ffexec/internal/ffmpeg"
	"ffexec/internal/ipc"
	"ffexec/internal/journal"
	"ffexec/internal/logging"
)

// logPointerName is the stable link to the current run log.
const logPointerName = "ffexecd.log"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the ffexec daemon runtime loop and blocks until SIGINT, SIGTERM,
// or cmdCtx cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("ffexecd-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	sessionID := uuid.NewString()
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		SessionID:   sessionID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logPointerName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "ffexecd-*.log", Exclude: []string{logPath}},
	)

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg.JournalPath())
		if err != nil {
			logger.Error("open execution journal", logging.Error(err))
			return err
		}
	}

	execOpts := []executor.Option{
		executor.WithLogger(logger),
		executor.WithTailBytes(cfg.Execution.OutputTailBytes),
	}
	if store != nil {
		execOpts = append(execOpts, executor.WithRecorder(store.Recorder(logger)))
	}
	exec := executor.New(execOpts...)
	if timeout := cfg.CommandTimeout(); timeout > 0 && !exec.SetTimeout(timeout) {
		logging.WarnWithContext(logger, "configured timeout below minimum ignored", "timeout_ignored",
			logging.Duration("timeout", timeout),
			logging.Duration("minimum", executor.MinimumTimeout))
	}

	locator := deps.NewLocator(cfg)
	client := ffmpeg.NewClient(locator, exec,
		ffmpeg.WithLogger(logger),
		ffmpeg.WithLibraryVersion(cfg.Binary.ShippedVersion))
	if !logDependencySnapshot(logger, locator) {
		go watchBinary(signalCtx, logger, locator)
	}

	d, err := daemon.New(cfg, client, locator, store, logger)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.Socket, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("ffexec daemon ready",
		logging.String("socket", cfg.Paths.Socket),
		logging.String("log_path", logPath),
		logging.String(logging.FieldEventType, "daemon_ready"))

	<-signalCtx.Done()
	logger.Info("ffexec daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// CurrentLogPath returns the link that points at the newest daemon run log.
func CurrentLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, logPointerName)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logPointerName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logDependencySnapshot logs binary availability and reports whether the
// binary resolved.
func logDependencySnapshot(logger *slog.Logger, locator *deps.Locator) bool {
	if logger == nil || locator == nil {
		return false
	}
	status := locator.Status()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("binary_available", status.Available),
		logging.String("binary", status.Command),
	}
	if !status.Available {
		attrs = append(attrs,
			logging.String("detail", status.Detail),
			logging.String(logging.FieldImpact, "every submitted command will be rejected"))
		logger.Warn("dependency snapshot", logging.Args(attrs...)...)
		return false
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	return true
}

// watchBinary logs once a binary that was missing at startup resolves.
func watchBinary(ctx context.Context, logger *slog.Logger, locator *deps.Locator) {
	select {
	case <-locator.Ready():
		path, _ := locator.Resolve()
		logger.Info("media binary available",
			logging.String("binary", path),
			logging.String(logging.FieldEventType, "binary_available"))
	case <-ctx.Done():
	}
}
