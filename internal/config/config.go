package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Binary describes where the media binary lives and which build ships with ffexec.
type Binary struct {
	Path           string            `toml:"path"`
	ArchPaths      map[string]string `toml:"arch_paths"`
	ShippedVersion string            `toml:"shipped_version"`
}

// Execution contains executor deadlines and readiness settings.
type Execution struct {
	// TimeoutSeconds is the default per-command deadline. Zero disables it.
	TimeoutSeconds      int `toml:"timeout_seconds"`
	ReadyTimeoutSeconds int `toml:"ready_timeout_seconds"`
	PollIntervalMillis  int `toml:"poll_interval_ms"`
	OutputTailBytes     int `toml:"output_tail_bytes"`
}

// Paths contains state directories and the daemon socket.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	Socket   string `toml:"socket"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// RetentionDays prunes daemon run logs older than this. Zero keeps them.
	RetentionDays int `toml:"retention_days"`
}

// Journal controls the execution history database.
type Journal struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// API controls the optional read-only HTTP status endpoint.
type API struct {
	// Bind is the listen address, such as "127.0.0.1:7487". Empty disables it.
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Config encapsulates all configuration values for ffexec.
//
// Configuration sections by subsystem:
//   - Binary: binary location, per-architecture overrides, shipped version
//   - Execution: default deadline, readiness timeout, output capture limits
//   - Paths: state, log, and socket locations
//   - Logging: log format and level
//   - Journal: execution history retention
//   - API: optional HTTP status endpoint
type Config struct {
	Binary    Binary    `toml:"binary"`
	Execution Execution `toml:"execution"`
	Paths     Paths     `toml:"paths"`
	Logging   Logging   `toml:"logging"`
	Journal   Journal   `toml:"journal"`
	API       API       `toml:"api"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ffexec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// BinaryForArch returns the configured binary for the given GOARCH, falling
// back to the default path. The second value reports whether any entry applied.
func (c *Config) BinaryForArch(arch string) (string, bool) {
	if arch == "" {
		arch = runtime.GOARCH
	}
	if path, ok := c.Binary.ArchPaths[arch]; ok && strings.TrimSpace(path) != "" {
		return path, true
	}
	if strings.TrimSpace(c.Binary.Path) == "" {
		return "", false
	}
	return c.Binary.Path, true
}

// CommandTimeout returns the default per-command deadline. Zero means none.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Execution.TimeoutSeconds) * time.Second
}

// ReadyTimeout returns the default readiness observation timeout.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Execution.ReadyTimeoutSeconds) * time.Second
}

// PollInterval returns the interval used by polling readiness probes.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Execution.PollIntervalMillis) * time.Millisecond
}

// JournalPath returns the execution history database location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "ffexecd.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "ffexecd.pid")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
