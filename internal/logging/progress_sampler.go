package logging

import (
	"strings"
	"time"
)

// ProgressSampler suppresses repetitive progress logs from streamed tool
// output. It emits when the phase changes, when the percent crosses a bucket
// boundary, or when minInterval has passed since the last emission.
type ProgressSampler struct {
	bucketSize  float64
	minInterval time.Duration
	lastPhase   string
	lastBucket  int
	lastEmit    time.Time
	now         func() time.Time
}

// NewProgressSampler constructs a sampler with the given bucket size (default
// 10%) and minimum interval (zero disables the time trigger).
func NewProgressSampler(bucketSize float64, minInterval time.Duration) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, minInterval: minInterval, lastBucket: -1, now: time.Now}
}

// ShouldLog reports whether a progress event should be logged. A negative
// percent means the total is unknown.
func (s *ProgressSampler) ShouldLog(percent float64, phase string) bool {
	if s == nil {
		return true
	}
	now := s.now()
	phase = strings.TrimSpace(phase)
	emit := false
	if phase != "" && phase != s.lastPhase {
		s.lastPhase = phase
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		bucket := int(percent / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	if !emit && s.minInterval > 0 && !s.lastEmit.IsZero() && now.Sub(s.lastEmit) >= s.minInterval {
		emit = true
	}
	if emit {
		s.lastEmit = now
	}
	return emit
}

// Reset clears the sampler state when a new command starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastPhase = ""
	s.lastBucket = -1
	s.lastEmit = time.Time{}
}
