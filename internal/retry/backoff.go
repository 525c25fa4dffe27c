package retry

import "time"

// MaxDelay caps every backoff so a task that keeps failing is retried at
// least this often.
const MaxDelay = 30 * time.Second

// ExponentialBackoff returns base * 2^attempt, capped at MaxDelay.
// Negative attempts are treated as the first attempt.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return MaxDelay
	}
	d := base * (1 << attempt)
	if d <= 0 || d > MaxDelay {
		return MaxDelay
	}
	return d
}
