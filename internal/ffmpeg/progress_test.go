package ffmpeg

import (
	"testing"
	"time"
)

func TestProgressTracker(t *testing.T) {
	var tracker ProgressTracker
	if _, ok := tracker.Observe("  Duration: 00:01:40.00, start: 0.000000, bitrate: 1200 kb/s"); ok {
		t.Fatal("duration line must not be reported as progress")
	}
	if tracker.Total() != 100*time.Second {
		t.Fatalf("expected total 100s, got %s", tracker.Total())
	}

	p, ok := tracker.Observe("frame=  250 fps= 50 q=28.0 size=    1024kB time=00:00:25.00 bitrate= 335.5kbits/s speed=2.01x")
	if !ok {
		t.Fatal("expected progress line to parse")
	}
	if p.Frame != 250 || p.FPS != 50 {
		t.Fatalf("unexpected frame/fps %d/%v", p.Frame, p.FPS)
	}
	if p.Time != 25*time.Second || p.Percent != 25 {
		t.Fatalf("unexpected position %s (%v%%)", p.Time, p.Percent)
	}
	if p.Speed != "2.01x" || p.Bitrate != "335.5kbits/s" {
		t.Fatalf("unexpected speed/bitrate %q/%q", p.Speed, p.Bitrate)
	}
}

func TestProgressTrackerUnknownTotal(t *testing.T) {
	var tracker ProgressTracker
	p, ok := tracker.Observe("size=N/A time=00:00:03.50 bitrate=N/A speed=1x")
	if !ok {
		t.Fatal("expected progress line to parse")
	}
	if p.Percent != -1 {
		t.Fatalf("expected unknown percent, got %v", p.Percent)
	}
	if p.Time != 3500*time.Millisecond {
		t.Fatalf("unexpected time %s", p.Time)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"01:02:03.5", time.Hour + 2*time.Minute + 3500*time.Millisecond, true},
		{"00:00:00", 0, true},
		{"-00:00:00.03", 0, true},
		{"N/A", 0, false},
		{"00:xx:01", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseTimestamp(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseTimestamp(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
