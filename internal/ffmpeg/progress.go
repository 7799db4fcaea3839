package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Progress is one parsed ffmpeg status line.
type Progress struct {
	Frame int64
	FPS   float64
	// Time is the media position reached so far.
	Time    time.Duration
	Total   time.Duration
	Speed   string
	Bitrate string
	// Percent is -1 when the input duration is unknown.
	Percent float64
}

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+:\d{2}:\d{2}(?:\.\d+)?)`)
	timePattern     = regexp.MustCompile(`time=\s*(-?\d+:\d{2}:\d{2}(?:\.\d+)?)`)
	framePattern    = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsPattern      = regexp.MustCompile(`fps=\s*([\d.]+)`)
	speedPattern    = regexp.MustCompile(`speed=\s*(\S+)`)
	bitratePattern  = regexp.MustCompile(`bitrate=\s*(\S+)`)
)

// ProgressTracker accumulates the input duration and turns status lines into
// Progress values. It is not safe for concurrent use.
type ProgressTracker struct {
	total time.Duration
}

// Observe inspects one output line. It returns false for lines that are not
// progress updates.
func (t *ProgressTracker) Observe(line string) (Progress, bool) {
	if m := durationPattern.FindStringSubmatch(line); m != nil && t.total == 0 {
		if d, ok := parseTimestamp(m[1]); ok {
			t.total = d
		}
		return Progress{}, false
	}
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	position, ok := parseTimestamp(m[1])
	if !ok {
		return Progress{}, false
	}
	p := Progress{Time: position, Total: t.total, Percent: -1}
	if t.total > 0 {
		p.Percent = float64(position) / float64(t.total) * 100
		if p.Percent > 100 {
			p.Percent = 100
		}
	}
	if m := framePattern.FindStringSubmatch(line); m != nil {
		p.Frame, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if m := fpsPattern.FindStringSubmatch(line); m != nil {
		p.FPS, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := speedPattern.FindStringSubmatch(line); m != nil {
		p.Speed = m[1]
	}
	if m := bitratePattern.FindStringSubmatch(line); m != nil {
		p.Bitrate = m[1]
	}
	return p, true
}

// Total returns the input duration seen so far, or zero.
func (t *ProgressTracker) Total() time.Duration {
	return t.total
}

// parseTimestamp parses HH:MM:SS(.frac). Negative positions, which ffmpeg
// prints before the first frame, clamp to zero.
func parseTimestamp(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}
	if negative {
		return 0, true
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, true
}
