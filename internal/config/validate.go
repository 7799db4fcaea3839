package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBinary(); err != nil {
		return err
	}
	if err := c.validateExecution(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateBinary() error {
	if strings.TrimSpace(c.Binary.Path) == "" && len(c.Binary.ArchPaths) == 0 {
		return errors.New("binary.path or binary.arch_paths must be set")
	}
	return nil
}

func (c *Config) validateExecution() error {
	if c.Execution.TimeoutSeconds != 0 && c.Execution.TimeoutSeconds < minimumTimeoutSeconds {
		return fmt.Errorf("execution.timeout_seconds must be 0 or at least %d", minimumTimeoutSeconds)
	}
	if c.Execution.ReadyTimeoutSeconds <= 0 {
		return errors.New("execution.ready_timeout_seconds must be positive")
	}
	if c.Execution.PollIntervalMillis <= 0 {
		return errors.New("execution.poll_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
