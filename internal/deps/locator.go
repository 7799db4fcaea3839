package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"ffexec/internal/config"
	"ffexec/internal/services"
)

// Locator resolves the media binary for the running platform.
//
// Lookup order: the per-architecture entry from config, then the configured
// default binary on PATH, then a binary with the same name sitting next to
// the running ffexec executable.
type Locator struct {
	archPaths  map[string]string
	binary     string
	arch       string
	executable func() (string, error)

	mu       sync.Mutex
	resolved string
	ready    chan struct{}
}

// LocatorOption customizes a Locator.
type LocatorOption func(*Locator)

// WithArch overrides the architecture used for the per-architecture table.
func WithArch(arch string) LocatorOption {
	return func(l *Locator) {
		l.arch = strings.ToLower(strings.TrimSpace(arch))
	}
}

// WithExecutable overrides how the running executable path is discovered.
func WithExecutable(fn func() (string, error)) LocatorOption {
	return func(l *Locator) {
		if fn != nil {
			l.executable = fn
		}
	}
}

// NewLocator builds a locator from the binary section of cfg.
func NewLocator(cfg *config.Config, opts ...LocatorOption) *Locator {
	l := &Locator{
		arch:       runtime.GOARCH,
		executable: os.Executable,
		ready:      make(chan struct{}),
	}
	if cfg != nil {
		l.binary = strings.TrimSpace(cfg.Binary.Path)
		l.archPaths = make(map[string]string, len(cfg.Binary.ArchPaths))
		for arch, path := range cfg.Binary.ArchPaths {
			l.archPaths[arch] = path
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve returns the absolute path of the binary. It fails with
// services.ErrUnsupported when nothing applies to the current architecture.
// The first successful resolution closes the Ready channel and is cached.
func (l *Locator) Resolve() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved != "" {
		return l.resolved, nil
	}

	var tried []string
	for _, candidate := range l.candidates() {
		tried = append(tried, candidate)
		path, err := exec.LookPath(candidate)
		if err != nil {
			continue
		}
		if abs, absErr := filepath.Abs(path); absErr == nil {
			path = abs
		}
		l.resolved = path
		close(l.ready)
		return path, nil
	}

	detail := fmt.Sprintf("no binary for %s/%s", runtime.GOOS, l.arch)
	if len(tried) > 0 {
		detail += fmt.Sprintf(" (tried %s)", strings.Join(tried, ", "))
	}
	return "", services.Wrap(services.ErrUnsupported, "locator", "resolve", detail, nil)
}

// Ready returns a channel closed once the binary has been resolved.
func (l *Locator) Ready() <-chan struct{} {
	return l.ready
}

// Status reports the resolution outcome in the same shape as CheckBinaries.
func (l *Locator) Status() Status {
	status := Status{
		Name:        "Media binary",
		Command:     l.displayName(),
		Description: "Executed for every submitted command",
	}
	path, err := l.Resolve()
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Command = path
	status.Available = true
	return status
}

func (l *Locator) displayName() string {
	if path := strings.TrimSpace(l.archPaths[l.arch]); path != "" {
		return path
	}
	return l.binary
}

func (l *Locator) candidates() []string {
	var out []string
	if path := strings.TrimSpace(l.archPaths[l.arch]); path != "" {
		out = append(out, path)
	}
	if l.binary != "" {
		out = append(out, l.binary)
		if sidecar, ok := l.sidecarCandidate(); ok {
			out = append(out, sidecar)
		}
	}
	return out
}

func (l *Locator) sidecarCandidate() (string, bool) {
	exe, err := l.executable()
	if err != nil || strings.TrimSpace(exe) == "" {
		return "", false
	}
	name := filepath.Base(l.binary)
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		name += ".exe"
	}
	candidate := filepath.Join(filepath.Dir(exe), name)
	info, err := os.Stat(candidate)
	if err != nil || !isExecutable(info) {
		return "", false
	}
	return candidate, true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
