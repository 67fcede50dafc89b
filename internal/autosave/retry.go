package autosave

import "time"

// RetryPolicy is the explicit backoff schedule for persistence failures.
// The bound and the delay curve are plain values so tests can assert them.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
}

// DefaultRetryPolicy retries five times: 5s, 10s, 20s, 40s between
// attempts, each delay doubling and capped at 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Second,
		MaxDelay:    60 * time.Second,
		Factor:      2,
	}
}

// DelayFor returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Factor
		if time.Duration(delay) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if time.Duration(delay) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(delay)
}
