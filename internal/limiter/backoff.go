package limiter

import "time"

const (
	maxBackoff = 300 * time.Second
	// 2^9 already exceeds maxBackoff.
	maxBackoffExponent = 9
)

// backoff tracks a streak of upstream failures. Not safe for concurrent use;
// the owning limiter serializes access.
type backoff struct {
	consecutiveErrors int
	lastErrorAt       time.Time // zero when absent
}

func (b *backoff) recordSuccess() {
	b.consecutiveErrors = 0
	b.lastErrorAt = time.Time{}
}

func (b *backoff) recordError(now time.Time) {
	b.consecutiveErrors++
	b.lastErrorAt = now
}

// window is the full cooldown for the current streak: min(300s, 2^n seconds).
func (b *backoff) window() time.Duration {
	n := b.consecutiveErrors
	if n <= 0 {
		return 0
	}
	if n >= maxBackoffExponent {
		return maxBackoff
	}
	d := time.Duration(1<<uint(n)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// remaining returns how long admission stays suspended as of now.
func (b *backoff) remaining(now time.Time) time.Duration {
	d := b.window()
	if d == 0 || b.lastErrorAt.IsZero() {
		return d
	}
	left := d - now.Sub(b.lastErrorAt)
	if left < 0 {
		return 0
	}
	return left
}
