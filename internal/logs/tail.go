package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	maxLineBytes        = 1 << 20
)

// Options controls Tail.
type Options struct {
	// Lines is how many trailing lines to print first. Zero prints none and
	// starts at the end of the file; a negative value prints the whole file.
	Lines  int
	Follow bool
	// Poll is the follow-mode polling interval.
	Poll time.Duration
}

// Tail emits the last opts.Lines lines of path. With opts.Follow it then emits
// appended lines until ctx ends, returning nil on cancellation.
func Tail(ctx context.Context, path string, opts Options, emit func(line string)) error {
	if opts.Poll <= 0 {
		opts.Poll = defaultPollInterval
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && opts.Follow {
			target = ""
		} else {
			return fmt.Errorf("resolve log path: %w", err)
		}
	}

	var offset int64
	if target != "" {
		lines, end, err := lastLines(target, opts.Lines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			emit(line)
		}
		offset = end
	}
	if !opts.Follow {
		return nil
	}

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		current, err := filepath.EvalSymlinks(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("resolve log path: %w", err)
		}
		if current != target {
			target, offset = current, 0
		}
		info, err := os.Stat(target)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat log file: %w", err)
		}
		if info.Size() < offset {
			offset = 0
		}
		if info.Size() == offset {
			continue
		}
		offset, err = readFrom(target, offset, emit)
		if err != nil {
			return err
		}
	}
}

// lastLines returns up to limit trailing complete lines and the offset just
// past them. A partial final line is left for the next read.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var ring []string
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	var all []string
	offset, err := scanLines(file, 0, func(line string) {
		switch {
		case limit < 0:
			all = append(all, line)
		case limit == 0:
		case len(ring) < limit:
			ring = append(ring, line)
		default:
			copy(ring, ring[1:])
			ring[len(ring)-1] = line
		}
	})
	if err != nil {
		return nil, 0, err
	}
	if limit < 0 {
		return all, offset, nil
	}
	return ring, offset, nil
}

func readFrom(path string, offset int64, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	return scanLines(file, offset, emit)
}

// scanLines emits newline-terminated lines from r and returns start advanced
// past the last complete line.
func scanLines(r io.Reader, start int64, emit func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	offset := start
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		line = strings.TrimSuffix(line, "\n")
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		emit(line)
	}
}
