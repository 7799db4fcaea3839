package process

import (
	"bufio"
	"bytes"
	"sync"
)

const defaultTailBytes = 64 << 10

// tailBuffer keeps the most recent limit bytes of combined output.
type tailBuffer struct {
	mu        sync.Mutex
	limit     int
	buf       []byte
	truncated bool
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = defaultTailBytes
	}
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) appendLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line...)
	t.buf = append(t.buf, '\n')
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
		t.truncated = true
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.buf
	if t.truncated {
		// Drop the partial first line left behind by truncation.
		if idx := bytes.IndexByte(out, '\n'); idx >= 0 && idx+1 < len(out) {
			out = out[idx+1:]
		}
	}
	return string(bytes.TrimRight(out, "\n"))
}

// splitLines splits on \n, \r\n, or a bare \r. ffmpeg rewrites its progress
// line with carriage returns. Runs longer than limit without a break are
// returned as limit-sized chunks.
func splitLines(limit int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := scanLines(data, atEOF)
		if advance == 0 && token == nil && err == nil && len(data) >= limit {
			return limit, data[:limit], nil
		}
		return advance, token, err
	}
}

func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance := i + 1
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					advance++
				}
			} else if !atEOF {
				return 0, nil, nil
			}
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
