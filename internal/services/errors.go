package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyRunning = errors.New("command already running")
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnsupported    = errors.New("unsupported platform")
	ErrSpawn          = errors.New("spawn failure")
	ErrTimeout        = errors.New("timeout")
	ErrKilled         = errors.New("killed")
	ErrCancelled      = errors.New("cancelled")
	ErrExternalTool   = errors.New("external tool error")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker so callers can classify it with errors.Is. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Synchronous reports whether err is one of the precondition failures surfaced
// directly to the caller rather than through a command result.
func Synchronous(err error) bool {
	switch {
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrEmptyCommand), errors.Is(err, ErrUnsupported):
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
