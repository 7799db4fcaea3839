package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeBinary()
	c.normalizeExecution()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		c.API.Token = strings.TrimSpace(os.Getenv("FFEXEC_API_TOKEN"))
	}
	if c.Journal.RetentionDays < 0 {
		c.Journal.RetentionDays = 0
	}
	return nil
}

func (c *Config) normalizeBinary() {
	if value, ok := os.LookupEnv("FFEXEC_BINARY"); ok && strings.TrimSpace(value) != "" {
		c.Binary.Path = strings.TrimSpace(value)
	}
	c.Binary.Path = strings.TrimSpace(c.Binary.Path)
	if strings.HasPrefix(c.Binary.Path, "~") || strings.ContainsRune(c.Binary.Path, filepath.Separator) {
		if expanded, err := expandPath(c.Binary.Path); err == nil {
			c.Binary.Path = expanded
		}
	}
	c.Binary.ShippedVersion = strings.TrimSpace(c.Binary.ShippedVersion)
	if len(c.Binary.ArchPaths) == 0 {
		return
	}
	cleaned := make(map[string]string, len(c.Binary.ArchPaths))
	for arch, path := range c.Binary.ArchPaths {
		arch = strings.ToLower(strings.TrimSpace(arch))
		path = strings.TrimSpace(path)
		if arch == "" || path == "" {
			continue
		}
		if strings.HasPrefix(path, "~") || strings.ContainsRune(path, filepath.Separator) {
			if expanded, err := expandPath(path); err == nil {
				path = expanded
			}
		}
		cleaned[arch] = path
	}
	c.Binary.ArchPaths = cleaned
}

// A timeout below the floor is dropped rather than rejected, leaving the
// executor without a default deadline.
func (c *Config) normalizeExecution() {
	if c.Execution.TimeoutSeconds < minimumTimeoutSeconds {
		c.Execution.TimeoutSeconds = 0
	}
	if c.Execution.ReadyTimeoutSeconds <= 0 {
		c.Execution.ReadyTimeoutSeconds = defaultReadyTimeoutSeconds
	}
	if c.Execution.PollIntervalMillis <= 0 {
		c.Execution.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Execution.OutputTailBytes <= 0 {
		c.Execution.OutputTailBytes = defaultOutputTailBytes
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.Socket) == "" {
		c.Paths.Socket = filepath.Join(c.Paths.StateDir, defaultSocketName)
	}
	if c.Paths.Socket, err = expandPath(c.Paths.Socket); err != nil {
		return fmt.Errorf("paths.socket: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
