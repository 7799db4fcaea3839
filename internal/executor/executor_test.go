package executor_test

import (
	"context"
	"errors"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"ffexec/internal/executor"
	"ffexec/internal/process"
	"ffexec/internal/services"
)

type countingHandler struct {
	starts    atomic.Int32
	progress  atomic.Int32
	successes atomic.Int32
	failures  atomic.Int32
	finishes  atomic.Int32
}

func (h *countingHandler) OnStart()                         { h.starts.Add(1) }
func (h *countingHandler) OnProgress(string)                { h.progress.Add(1) }
func (h *countingHandler) OnSuccess(executor.CommandResult) { h.successes.Add(1) }
func (h *countingHandler) OnFailure(executor.CommandResult) { h.failures.Add(1) }
func (h *countingHandler) OnFinish()                        { h.finishes.Add(1) }

func waitResult(t *testing.T, handle *executor.Handle, within time.Duration) executor.CommandResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	result, err := handle.Wait(ctx)
	if err != nil {
		t.Fatalf("result not delivered within %s: %v", within, err)
	}
	return result
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// startLongRunning launches a script that prints "started" and sleeps, and
// waits until the process is actually running.
func startLongRunning(t *testing.T, exec *executor.Executor, marker string, opts ...executor.ExecOption) *executor.Handle {
	t.Helper()
	script := writeScript(t, `echo run >> "$1"
echo started
exec sleep 5`)
	started := make(chan struct{})
	var once sync.Once
	opts = append(opts, executor.WithOnLine(func(line string) {
		if line == "started" {
			once.Do(func() { close(started) })
		}
	}))
	handle, err := exec.Execute(context.Background(), process.NewCommand(script, marker), opts...)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not start")
	}
	return handle
}

func TestExecuteEchoDeliversSuccessOnce(t *testing.T) {
	exec := executor.New()
	handler := &countingHandler{}

	handle, err := exec.Execute(context.Background(), process.NewCommand("echo", "hello"), executor.WithHandler(handler))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if handle.ID() == "" {
		t.Fatal("expected handle id")
	}
	result := waitResult(t, handle, 5*time.Second)
	if !result.Success || result.ExitCode != 0 {
		t.Fatalf("expected success, got %+v", result)
	}
	if !strings.Contains(result.Output, "hello") {
		t.Fatalf("expected output to contain hello, got %q", result.Output)
	}
	if result.Outcome != executor.OutcomeSuccess || handle.State() != executor.StateSucceeded {
		t.Fatalf("unexpected outcome %q state %s", result.Outcome, handle.State())
	}
	if result.ID != handle.ID() {
		t.Fatalf("result id %q does not match handle %q", result.ID, handle.ID())
	}
	if exec.IsRunning() {
		t.Fatal("executor still running after delivery")
	}

	time.Sleep(50 * time.Millisecond)
	if handler.starts.Load() != 1 || handler.successes.Load() != 1 || handler.failures.Load() != 0 || handler.finishes.Load() != 1 {
		t.Fatalf("unexpected callback counts start=%d success=%d failure=%d finish=%d",
			handler.starts.Load(), handler.successes.Load(), handler.failures.Load(), handler.finishes.Load())
	}
	if handler.progress.Load() != 1 {
		t.Fatalf("expected one progress line, got %d", handler.progress.Load())
	}
}

func TestExecuteWhileRunningFailsWithoutSpawning(t *testing.T) {
	exec := executor.New()
	marker := filepath.Join(t.TempDir(), "runs")
	handle := startLongRunning(t, exec, marker)

	second, err := exec.Execute(context.Background(), process.NewCommand("echo", "again"))
	if !errors.Is(err, services.ErrAlreadyRunning) {
		t.Fatalf("expected already running, got %v", err)
	}
	if second != nil {
		t.Fatal("expected nil handle on rejection")
	}
	if !services.Synchronous(err) {
		t.Fatal("already running must be a synchronous error")
	}

	if !exec.Kill() {
		t.Fatal("expected Kill to report a running execution")
	}
	waitResult(t, handle, 5*time.Second)

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if got := strings.Count(string(data), "run"); got != 1 {
		t.Fatalf("expected exactly one spawn, got %d", got)
	}
}

func TestExecuteEmptyCommand(t *testing.T) {
	exec := executor.New()
	for _, cmd := range []process.Command{{}, process.FromArgv(nil), process.NewCommand("")} {
		handle, err := exec.Execute(context.Background(), cmd)
		if !errors.Is(err, services.ErrEmptyCommand) {
			t.Fatalf("expected empty command error, got %v", err)
		}
		if handle != nil {
			t.Fatal("expected nil handle")
		}
	}
	if exec.IsRunning() {
		t.Fatal("empty command must not claim the slot")
	}
}

func TestKillIdleReturnsFalse(t *testing.T) {
	exec := executor.New()
	if exec.Kill() {
		t.Fatal("expected Kill on idle executor to return false")
	}
	if exec.KillAndWait(context.Background()) {
		t.Fatal("expected KillAndWait on idle executor to return false")
	}
}

func TestKillRunningDeliversKilledResult(t *testing.T) {
	exec := executor.New()
	handler := &countingHandler{}
	handle := startLongRunning(t, exec, filepath.Join(t.TempDir(), "runs"), executor.WithHandler(handler))

	if !exec.IsRunning() || exec.State() != executor.StateRunning {
		t.Fatal("expected running executor")
	}
	if handle.PID() <= 0 {
		t.Fatalf("expected pid after start, got %d", handle.PID())
	}
	if !exec.Kill() {
		t.Fatal("expected Kill to return true")
	}
	if exec.IsRunning() {
		t.Fatal("Kill must free the slot immediately")
	}

	result := waitResult(t, handle, 3*time.Second)
	if result.Success {
		t.Fatal("expected non-success after kill")
	}
	if result.Outcome != executor.OutcomeKilled || !errors.Is(result.Err, services.ErrKilled) {
		t.Fatalf("expected killed outcome, got %q (%v)", result.Outcome, result.Err)
	}
	if handler.failures.Load() != 1 || handler.successes.Load() != 0 {
		t.Fatalf("expected one failure callback, got failures=%d successes=%d", handler.failures.Load(), handler.successes.Load())
	}
}

func TestKillAndWaitBlocksUntilDelivery(t *testing.T) {
	exec := executor.New()
	handle := startLongRunning(t, exec, filepath.Join(t.TempDir(), "runs"))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if !exec.KillAndWait(ctx) {
		t.Fatal("expected KillAndWait to observe completion")
	}
	if !handle.Completed() {
		t.Fatal("handle must be completed when KillAndWait returns")
	}
	if err := unix.Kill(handle.PID(), 0); !errors.Is(err, unix.ESRCH) {
		t.Fatalf("expected process gone, got %v", err)
	}
}

func TestSetTimeoutBelowFloorKeepsPrevious(t *testing.T) {
	exec := executor.New()
	if exec.Timeout() != 0 {
		t.Fatalf("expected no default deadline, got %s", exec.Timeout())
	}
	if !exec.SetTimeout(30 * time.Second) {
		t.Fatal("expected 30s timeout to be accepted")
	}
	if exec.SetTimeout(5 * time.Second) {
		t.Fatal("expected 5s timeout to be rejected")
	}
	if exec.SetTimeout(executor.MinimumTimeout - time.Millisecond) {
		t.Fatal("expected timeout just under the floor to be rejected")
	}
	if got := exec.Timeout(); got != 30*time.Second {
		t.Fatalf("expected previous timeout to remain, got %s", got)
	}
	if !exec.SetTimeout(executor.MinimumTimeout) {
		t.Fatal("expected the floor itself to be accepted")
	}
}

func TestWithTimeoutBelowFloorFallsBackToDefault(t *testing.T) {
	exec := executor.New()
	handle, err := exec.Execute(context.Background(), process.NewCommand("echo", "x"), executor.WithTimeout(time.Millisecond))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !handle.Deadline().IsZero() {
		t.Fatalf("expected no deadline, got %s", handle.Deadline())
	}
	result := waitResult(t, handle, 5*time.Second)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestTimeoutKillsProcess(t *testing.T) {
	exec := executor.New(executor.WithMinimumTimeout(10 * time.Millisecond))
	start := time.Now()
	handle, err := exec.Execute(context.Background(), process.NewCommand("sleep", "5"), executor.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result := waitResult(t, handle, 2*time.Second)
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Fatalf("result arrived before the deadline: %s", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("timeout delivery too slow: %s", elapsed)
	}
	if result.Success || result.Outcome != executor.OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %+v", result)
	}
	if !errors.Is(result.Err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", result.Err)
	}
	if handle.State() != executor.StateTimedOut {
		t.Fatalf("expected timed out state, got %s", handle.State())
	}
	if err := unix.Kill(handle.PID(), 0); !errors.Is(err, unix.ESRCH) {
		t.Fatalf("expected process gone from process table, got %v", err)
	}
}

func TestSpawnFailureDeliveredAsResult(t *testing.T) {
	exec := executor.New()
	handler := &countingHandler{}
	handle, err := exec.Execute(context.Background(), process.NewCommand("/nonexistent/binary"), executor.WithHandler(handler))
	if err != nil {
		t.Fatalf("spawn failure must not be synchronous: %v", err)
	}
	result := waitResult(t, handle, 5*time.Second)
	if result.Success || result.ExitCode != -1 {
		t.Fatalf("expected spawn failure, got %+v", result)
	}
	if !errors.Is(result.Err, services.ErrSpawn) {
		t.Fatalf("expected spawn marker, got %v", result.Err)
	}
	if result.Output == "" {
		t.Fatal("expected spawn diagnostic in output")
	}
	if handler.failures.Load() != 1 || handler.finishes.Load() != 1 {
		t.Fatalf("expected failure and finish callbacks, got failures=%d finishes=%d", handler.failures.Load(), handler.finishes.Load())
	}
}

func TestNonZeroExitIsFailure(t *testing.T) {
	exec := executor.New()
	handle, err := exec.Execute(context.Background(), process.NewCommand(writeScript(t, "exit 4")))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result := waitResult(t, handle, 5*time.Second)
	if result.Success || result.ExitCode != 4 || result.Outcome != executor.OutcomeFailure {
		t.Fatalf("expected failure with exit 4, got %+v", result)
	}
	if !errors.Is(result.Err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", result.Err)
	}
}

func TestIdleChannelTracksSlot(t *testing.T) {
	exec := executor.New()
	select {
	case <-exec.Idle():
	default:
		t.Fatal("expected idle channel closed on a fresh executor")
	}

	handle := startLongRunning(t, exec, filepath.Join(t.TempDir(), "runs"))
	idle := exec.Idle()
	select {
	case <-idle:
		t.Fatal("idle channel closed while running")
	default:
	}
	if exec.Current() != handle {
		t.Fatal("expected Current to return the running handle")
	}

	exec.Kill()
	select {
	case <-idle:
	case <-time.After(time.Second):
		t.Fatal("idle channel not closed after kill")
	}
	waitResult(t, handle, 3*time.Second)
	if exec.Current() != nil {
		t.Fatal("expected no current handle when idle")
	}
}

func TestRecorderSeesEveryCompletion(t *testing.T) {
	results := make(chan executor.CommandResult, 2)
	exec := executor.New(executor.WithRecorder(executor.RecorderFunc(func(r executor.CommandResult) {
		results <- r
	})))

	for _, word := range []string{"one", "two"} {
		handle, err := exec.Execute(context.Background(), process.NewCommand("echo", word))
		if err != nil {
			t.Fatalf("Execute %s: %v", word, err)
		}
		waitResult(t, handle, 5*time.Second)
	}
	for _, want := range []string{"one", "two"} {
		select {
		case r := <-results:
			if !strings.Contains(r.Output, want) {
				t.Fatalf("expected %q in recorded output, got %q", want, r.Output)
			}
		default:
			t.Fatalf("recorder missed %q", want)
		}
	}
}

func TestContextCancelKillsExecution(t *testing.T) {
	exec := executor.New()
	ctx, cancel := context.WithCancel(context.Background())
	handle, err := exec.Execute(ctx, process.NewCommand("sleep", "5"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	cancel()
	result := waitResult(t, handle, 3*time.Second)
	if result.Outcome != executor.OutcomeKilled {
		t.Fatalf("expected killed outcome, got %+v", result)
	}
	if exec.IsRunning() {
		t.Fatal("expected idle executor after cancellation")
	}
}

func TestEnvOverlayReachesProcess(t *testing.T) {
	exec := executor.New()
	script := writeScript(t, `echo "value=$FFEXEC_EXEC_TEST"`)
	handle, err := exec.Execute(context.Background(), process.NewCommand(script),
		executor.WithEnv(map[string]string{"FFEXEC_EXEC_TEST": "42"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result := waitResult(t, handle, 5*time.Second)
	if !strings.Contains(result.Output, "value=42") {
		t.Fatalf("expected env value in output, got %q", result.Output)
	}
}

func TestNextExecutionAfterCompletion(t *testing.T) {
	exec := executor.New()
	first, err := exec.Execute(context.Background(), process.NewCommand("echo", "first"))
	if err != nil {
		t.Fatalf("Execute first: %v", err)
	}
	waitResult(t, first, 5*time.Second)

	second, err := exec.Execute(context.Background(), process.NewCommand("echo", "second"))
	if err != nil {
		t.Fatalf("Execute second: %v", err)
	}
	if second.ID() == first.ID() {
		t.Fatal("expected distinct execution ids")
	}
	waitResult(t, second, 5*time.Second)
}

// startSlowExit launches a script that needs a moment to exit after SIGTERM,
// so a killed handle completes well after the slot was freed.
func startSlowExit(t *testing.T, exec *executor.Executor, ctx context.Context) *executor.Handle {
	t.Helper()
	script := writeScript(t, `trap 'sleep 0.3; exit 143' TERM
echo started
sleep 5 &
wait`)
	started := make(chan struct{})
	var once sync.Once
	handle, err := exec.Execute(ctx, process.NewCommand(script), executor.WithOnLine(func(line string) {
		if line == "started" {
			once.Do(func() { close(started) })
		}
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not start")
	}
	return handle
}

func TestKillThenExecuteKeepsNewSlot(t *testing.T) {
	exec := executor.New()
	first := startSlowExit(t, exec, context.Background())
	if !exec.Kill() {
		t.Fatal("expected Kill to return true")
	}

	second, err := exec.Execute(context.Background(), process.NewCommand("sh", "-c", "sleep 2; echo second"))
	if err != nil {
		t.Fatalf("Execute after kill: %v", err)
	}

	firstResult := waitResult(t, first, 3*time.Second)
	if firstResult.Outcome != executor.OutcomeKilled {
		t.Fatalf("expected killed outcome for first, got %q", firstResult.Outcome)
	}
	if second.Completed() {
		t.Skip("second execution finished before the first delivered")
	}
	if !exec.IsRunning() {
		t.Fatal("late delivery of the killed execution must not free the new slot")
	}
	if exec.Current() != second {
		t.Fatal("expected the second execution to hold the slot")
	}

	secondResult := waitResult(t, second, 5*time.Second)
	if !secondResult.Success {
		t.Fatalf("expected second execution to succeed, got %+v", secondResult)
	}
	if exec.IsRunning() {
		t.Fatal("expected idle executor after the second execution")
	}
}

func TestKillAndWaitAfterKillWaitsForExit(t *testing.T) {
	exec := executor.New()
	handle := startSlowExit(t, exec, context.Background())
	if !exec.Kill() {
		t.Fatal("expected Kill to return true")
	}
	if handle.Completed() {
		t.Fatal("handle should still be exiting right after Kill")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if !exec.KillAndWait(ctx) {
		t.Fatal("expected KillAndWait to wait for the exiting execution")
	}
	if !handle.Completed() {
		t.Fatal("handle must be completed when KillAndWait returns")
	}
	if exec.KillAndWait(ctx) {
		t.Fatal("expected KillAndWait to return false once nothing is left")
	}
}

func TestKillAndWaitAfterContextCancel(t *testing.T) {
	exec := executor.New()
	ctx, cancel := context.WithCancel(context.Background())
	handle := startSlowExit(t, exec, ctx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for exec.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if exec.IsRunning() {
		t.Fatal("expected cancellation to free the slot")
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer waitCancel()
	if !exec.KillAndWait(waitCtx) {
		t.Fatal("expected KillAndWait to wait for the cancelled execution")
	}
	if !handle.Completed() {
		t.Fatal("handle must be completed when KillAndWait returns")
	}
	if result, _ := handle.Result(); result.Outcome != executor.OutcomeKilled {
		t.Fatalf("expected killed outcome, got %q", result.Outcome)
	}
}

func TestTimeoutIgnoresDetachedDescendant(t *testing.T) {
	if _, err := osexec.LookPath("setsid"); err != nil {
		t.Skip("setsid not available")
	}
	exec := executor.New(executor.WithMinimumTimeout(10 * time.Millisecond))
	script := writeScript(t, `setsid sleep 3 &
exec sleep 10`)
	handle, err := exec.Execute(context.Background(), process.NewCommand(script), executor.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result := waitResult(t, handle, time.Second)
	if result.Outcome != executor.OutcomeTimeout {
		t.Fatalf("expected timed-out outcome, got %q", result.Outcome)
	}
	if exec.IsRunning() {
		t.Fatal("expected idle executor after timeout")
	}
}
