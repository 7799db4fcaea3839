package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"ffexec/internal/services"
)

// Result is the outcome of one process run.
type Result struct {
	Success  bool
	Output   string
	ExitCode int
	// TimedOut and Killed are set by callers that terminated the process.
	TimedOut bool
	Killed   bool
	Err      error
	Started  time.Time
	Finished time.Time
}

// Duration returns how long the process ran.
func (r Result) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Options tunes a single Start call.
type Options struct {
	Env       map[string]string
	OnLine    func(string)
	TailBytes int
}

// maxLineBytes caps a single emitted line. Longer runs of output without a
// line break are emitted in chunks of this size.
const maxLineBytes = 1 << 20

// drainGrace bounds how long Wait keeps reading output after the process has
// exited. Descendants that inherited the pipe cannot hold completion open
// past it.
const drainGrace = 100 * time.Millisecond

// Process is a started command. Signals go to its whole process group.
type Process struct {
	cmd     Command
	exec    *exec.Cmd
	pid     int
	started time.Time
	tail    *tailBuffer

	reader   *os.File
	readDone chan struct{}
	waitOnce sync.Once
	result   Result
}

// Start spawns cmd and begins collecting its combined output. A spawn failure
// is returned as an error tagged with services.ErrSpawn together with the
// failed Result so callers can deliver it unchanged.
func Start(cmd Command, opts Options) (*Process, Result, error) {
	started := time.Now()
	if cmd.Empty() {
		err := services.Wrap(services.ErrEmptyCommand, "process", "start", "", nil)
		return nil, failedResult(started, err.Error(), err), err
	}

	c := exec.Command(cmd.Binary(), cmd.Args()...) //nolint:gosec
	c.Env = mergeEnv(os.Environ(), opts.Env)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	reader, writer, err := os.Pipe()
	if err != nil {
		wrapped := services.Wrap(services.ErrSpawn, "process", "pipe", "", err)
		return nil, failedResult(started, wrapped.Error(), wrapped), wrapped
	}
	c.Stdout = writer
	c.Stderr = writer

	if err := c.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		wrapped := services.Wrap(services.ErrSpawn, "process", "start", cmd.Binary(), err)
		return nil, failedResult(started, wrapped.Error(), wrapped), wrapped
	}
	_ = writer.Close()

	p := &Process{
		cmd:      cmd,
		exec:     c,
		pid:      c.Process.Pid,
		started:  started,
		tail:     newTailBuffer(opts.TailBytes),
		reader:   reader,
		readDone: make(chan struct{}),
	}
	go p.collect(opts.OnLine)
	return p, Result{}, nil
}

// collect reads output until EOF. The read end stays open until then so the
// child never sees SIGPIPE; only Wait closes it early, after the process has
// exited.
func (p *Process) collect(onLine func(string)) {
	defer close(p.readDone)
	scanner := bufio.NewScanner(p.reader)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	scanner.Split(splitLines(maxLineBytes))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		p.tail.appendLine(line)
		if onLine != nil {
			onLine(line)
		}
	}
	if scanner.Err() != nil {
		_, _ = io.Copy(io.Discard, p.reader)
	}
}

// PID returns the operating system process id, which is also the group id.
func (p *Process) PID() int {
	return p.pid
}

// Command returns the command this process runs.
func (p *Process) Command() Command {
	return p.cmd
}

// Terminate asks the process group to exit with SIGTERM.
func (p *Process) Terminate() error {
	return p.signal(unix.SIGTERM)
}

// Kill forces the process group to exit with SIGKILL.
func (p *Process) Kill() error {
	return p.signal(unix.SIGKILL)
}

func (p *Process) signal(sig unix.Signal) error {
	if p == nil || p.pid <= 0 {
		return nil
	}
	err := unix.Kill(-p.pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	if err != nil {
		// Fall back to the leader when the group cannot be signalled.
		if leaderErr := unix.Kill(p.pid, sig); leaderErr != nil && !errors.Is(leaderErr, unix.ESRCH) {
			return fmt.Errorf("signal %s to pid %d: %w", sig, p.pid, err)
		}
	}
	return nil
}

// Wait blocks until the process exits and its output is drained. Output still
// held open by detached descendants is abandoned after drainGrace. It is safe
// to call from multiple goroutines; every caller receives the same Result.
func (p *Process) Wait() Result {
	p.waitOnce.Do(func() {
		waitErr := p.exec.Wait()
		drain := time.NewTimer(drainGrace)
		select {
		case <-p.readDone:
		case <-drain.C:
			_ = p.reader.Close()
			<-p.readDone
		}
		drain.Stop()
		_ = p.reader.Close()
		result := Result{
			Output:   p.tail.String(),
			ExitCode: -1,
			Started:  p.started,
			Finished: time.Now(),
		}
		if state := p.exec.ProcessState; state != nil {
			result.ExitCode = state.ExitCode()
		}
		switch {
		case waitErr == nil && result.ExitCode == 0:
			result.Success = true
		case waitErr != nil:
			result.Err = services.Wrap(services.ErrExternalTool, "process", "wait", p.cmd.Binary(), waitErr)
		default:
			result.Err = services.Wrap(services.ErrExternalTool, "process", "wait", fmt.Sprintf("exit status %d", result.ExitCode), nil)
		}
		p.result = result
	})
	return p.result
}

func failedResult(started time.Time, diagnostic string, err error) Result {
	return Result{
		Success:  false,
		Output:   diagnostic,
		ExitCode: -1,
		Err:      err,
		Started:  started,
		Finished: time.Now(),
	}
}

// mergeEnv overlays the given variables on base. Later entries win in
// exec.Cmd, so overlay keys are appended in sorted order.
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	keys := make([]string, 0, len(overlay))
	for key := range overlay {
		if key == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, key := range keys {
		env = append(env, key+"="+overlay[key])
	}
	return env
}
