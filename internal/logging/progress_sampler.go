package logging

// ProgressSampler thins out progress logging for long operations. It lets a
// value through the first time, whenever it enters a new step-sized bucket
// and when it reaches 100.
type ProgressSampler struct {
	step int
	last int
}

// NewProgressSampler returns a sampler with the given bucket width in
// percent. step <= 0 uses 5.
func NewProgressSampler(step int) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, last: -1}
}

// ShouldLog reports whether percent is worth a log line.
func (s *ProgressSampler) ShouldLog(percent int) bool {
	if s == nil {
		return true
	}
	percent = min(max(percent, 0), 100)
	bucket := percent / s.step
	if percent == 100 {
		bucket = 100/s.step + 1
	}
	if bucket <= s.last {
		return false
	}
	s.last = bucket
	return true
}

// Reset forgets what was logged.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.last = -1
	}
}
