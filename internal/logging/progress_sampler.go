package logging

import "strings"

// ProgressSampler decides which executor progress updates are worth a log
// line. It emits when the workspace changes or the percentage crosses into a
// new bucket.
type ProgressSampler struct {
	bucketSize    float64
	lastWorkspace string
	lastBucket    int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percent (default 10).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress update should be logged. A negative
// percent means unknown and never advances the bucket.
func (s *ProgressSampler) ShouldLog(workspace string, percent float64) bool {
	if s == nil {
		return true
	}
	workspace = strings.TrimSpace(workspace)
	emit := false
	if workspace != "" && workspace != s.lastWorkspace {
		s.lastWorkspace = workspace
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := int(min(percent, 100) / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state when a new job starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastWorkspace = ""
	s.lastBucket = -1
}
