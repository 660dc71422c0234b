package limiter

import (
	"context"
	"time"
)

// RateLimiter decides whether a logical call to the upstream API may proceed.
// Both variants are safe for concurrent use and never return errors: every
// failure mode resolves to an allow/deny decision.
type RateLimiter interface {
	// CanMakeRequest is a read-only admission check meant for introspection.
	// Callers that intend to perform the call must use MakeRequest.
	CanMakeRequest(ctx context.Context, priority Priority) (bool, string)

	// MakeRequest checks and commits admission in one step.
	MakeRequest(ctx context.Context, priority Priority) bool

	// RecordSuccess reports a successful upstream call.
	RecordSuccess()

	// RecordError reports a failed upstream call.
	RecordError(errorType string)

	// GetStats returns a consistent snapshot of the limiter state.
	GetStats(ctx context.Context) Stats

	// WaitIfNeeded polls MakeRequest until admitted, maxWait elapses or ctx is done.
	WaitIfNeeded(ctx context.Context, priority Priority, maxWait time.Duration) bool
}

// Variant identifies which limiter implementation the selection policy chose.
type Variant string

const (
	VariantInProcess   Variant = "in_process"
	VariantDistributed Variant = "distributed"
)

// Stats is a point-in-time view of a limiter.
type Stats struct {
	Variant                Variant `json:"variant"`
	TokensAvailable        float64 `json:"tokens_available"`
	BurstCapacity          float64 `json:"burst_capacity"`
	RequestsInWindow       int     `json:"requests_in_window"`
	WindowSizeSeconds      int     `json:"window_size_seconds"`
	ConsecutiveErrors      int     `json:"consecutive_errors"`
	BackoffDelay           float64 `json:"backoff_delay"` // seconds
	RequestsPerSecondLimit float64 `json:"requests_per_second_limit"`
}

// Remaining reports how many more requests the current window admits.
func (s Stats) Remaining() float64 {
	limit := s.RequestsPerSecondLimit * float64(s.WindowSizeSeconds) / 60
	remaining := limit - float64(s.RequestsInWindow)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reason strings returned by CanMakeRequest.
const (
	ReasonAllowed        = "request allowed"
	ReasonWindowExceeded = "sliding window limit exceeded"
	ReasonBucketEmpty    = "token bucket empty"
	ReasonRateExceeded   = "rate limit exceeded"
	ReasonStoreError     = "cache error - allowing request"
)
