package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Make sure InProcessLimiter implements RateLimiter
var _ RateLimiter = (*InProcessLimiter)(nil)

// InProcessLimiter combines three gates, evaluated in order:
//   - exponential backoff after consecutive upstream errors
//   - a sliding window log capping requests per window
//   - a token bucket bounding bursts, where lower priorities cost more tokens
//
// All state lives behind a single mutex; every public method is one critical
// section.
type InProcessLimiter struct {
	cfg          Config
	clock        Clock
	logger       *zap.Logger
	pollInterval time.Duration

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	window     slidingWindow
	backoff    backoff
}

// NewInProcess creates a limiter with a full bucket.
func NewInProcess(cfg Config, opts ...Option) *InProcessLimiter {
	cfg = cfg.withDefaults()
	o := newOptions(opts)
	return &InProcessLimiter{
		cfg:          cfg,
		clock:        o.clock,
		logger:       o.logger,
		pollInterval: o.pollInterval,
		tokens:       cfg.BurstCapacity,
		lastRefill:   o.clock(),
		window:       slidingWindow{size: cfg.WindowSize},
	}
}

// CanMakeRequest reports whether a request at priority p would be admitted
// now. It refills the bucket and prunes the window but consumes nothing.
func (l *InProcessLimiter) CanMakeRequest(_ context.Context, p Priority) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.check(l.clock(), p)
}

// MakeRequest admits a request at priority p if CanMakeRequest would, and
// consumes its tokens and a window slot in the same critical section.
func (l *InProcessLimiter) MakeRequest(_ context.Context, p Priority) bool {
	allowed, reason, tokens := l.admit(p)
	if !allowed {
		l.logger.Warn("TMDb API request blocked",
			zap.String("priority", string(p)),
			zap.String("reason", reason),
		)
		return false
	}
	l.logger.Debug("TMDb API request allowed",
		zap.String("priority", string(p)),
		zap.Float64("tokens", tokens),
	)
	return true
}

// RecordSuccess ends the current error streak.
func (l *InProcessLimiter) RecordSuccess() {
	l.mu.Lock()
	l.backoff.recordSuccess()
	l.mu.Unlock()
}

// RecordError extends the error streak and restarts the backoff window.
func (l *InProcessLimiter) RecordError(errorType string) {
	l.mu.Lock()
	l.backoff.recordError(l.clock())
	consecutive := l.backoff.consecutiveErrors
	delay := l.backoff.window()
	l.mu.Unlock()

	l.logger.Warn("TMDb API error recorded",
		zap.String("type", errorType),
		zap.Int("consecutive", consecutive),
		zap.Duration("backoff", delay),
	)
}

// BackoffDelay returns the remaining error cooldown, zero when none applies.
func (l *InProcessLimiter) BackoffDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff.remaining(l.clock())
}

// GetStats returns a snapshot. Tokens are reported as of the last refill.
func (l *InProcessLimiter) GetStats(_ context.Context) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.window.prune(now)

	return Stats{
		Variant:                VariantInProcess,
		TokensAvailable:        l.tokens,
		BurstCapacity:          l.cfg.BurstCapacity,
		RequestsInWindow:       l.window.len(),
		WindowSizeSeconds:      int(l.cfg.WindowSize / time.Second),
		ConsecutiveErrors:      l.backoff.consecutiveErrors,
		BackoffDelay:           l.backoff.remaining(now).Seconds(),
		RequestsPerSecondLimit: l.cfg.RequestsPerSecond,
	}
}

// WaitIfNeeded retries MakeRequest every poll interval until it succeeds,
// maxWait elapses or ctx is done. The lock is released between attempts.
func (l *InProcessLimiter) WaitIfNeeded(ctx context.Context, p Priority, maxWait time.Duration) bool {
	admitted, err := poll(ctx, maxWait, l.pollInterval, func() bool {
		ok, _, _ := l.admit(p)
		return ok
	})
	if !admitted {
		l.logger.Error("TMDb API rate limiter wait gave up",
			zap.String("priority", string(p)),
			zap.Duration("max_wait", maxWait),
			zap.Error(err),
		)
	}
	return admitted
}

func (l *InProcessLimiter) admit(p Priority) (bool, string, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	allowed, reason := l.check(now, p)
	if !allowed {
		return false, reason, l.tokens
	}

	l.tokens -= Cost(p)
	l.window.add(now)
	return true, reason, l.tokens
}

// check must be called with l.mu held.
func (l *InProcessLimiter) check(now time.Time, p Priority) (bool, string) {
	// Backoff wins over quota: a failing upstream is not retried even when
	// capacity remains.
	if delay := l.backoff.remaining(now); delay > 0 {
		return false, fmt.Sprintf("backing off for %.1fs", delay.Seconds())
	}

	l.refill(now)
	l.window.prune(now)

	if float64(l.window.len()) >= l.cfg.maxWindowRequests() {
		return false, ReasonWindowExceeded
	}
	if l.tokens < Cost(p) {
		return false, ReasonBucketEmpty
	}
	return true, ReasonAllowed
}

// refill must be called with l.mu held. A clock that steps backwards adds
// nothing and leaves lastRefill alone.
func (l *InProcessLimiter) refill(now time.Time) {
	if !now.After(l.lastRefill) {
		return
	}
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens = min(l.cfg.BurstCapacity, l.tokens+elapsed*l.cfg.RequestsPerSecond)
	l.lastRefill = now
}
