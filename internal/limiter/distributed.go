package limiter

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Make sure DistributedLimiter implements RateLimiter
var _ RateLimiter = (*DistributedLimiter)(nil)

// CounterStore is a shared key/value store with expiring integer counters.
type CounterStore interface {
	// Get returns the counter value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	// Incr atomically increments key. The TTL is set only when the
	// increment creates the key.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Probe performs a trivial write/read round trip.
	Probe(ctx context.Context) error
}

// DistributedLimiter approximates the per-window quota across processes with
// one shared counter that expires a window after its last write.
//
// Known limitations:
//   - priority is ignored; every request counts as one.
//   - without strict counting the increment is get-then-set, so concurrent
//     processes may over-admit slightly.
//   - there is no backoff state; RecordSuccess and RecordError only log.
//
// Store failures never block a caller: every operation fails open.
type DistributedLimiter struct {
	cfg          Config
	store        CounterStore
	logger       *zap.Logger
	pollInterval time.Duration
	key          string
	strict       bool
}

// NewDistributed creates a limiter backed by store.
func NewDistributed(store CounterStore, cfg Config, opts ...Option) *DistributedLimiter {
	cfg = cfg.withDefaults()
	o := newOptions(opts)
	return &DistributedLimiter{
		cfg:          cfg,
		store:        store,
		logger:       o.logger,
		pollInterval: o.pollInterval,
		key:          o.keyPrefix + ":count",
		strict:       o.strict,
	}
}

// Key returns the shared counter key.
func (d *DistributedLimiter) Key() string {
	return d.key
}

// CanMakeRequest compares the shared counter against the window cap.
func (d *DistributedLimiter) CanMakeRequest(ctx context.Context, _ Priority) (bool, string) {
	count, _, err := d.store.Get(ctx, d.key)
	if err != nil {
		d.logger.Error("Cache error in rate limiter", zap.String("key", d.key), zap.Error(err))
		return true, ReasonStoreError
	}
	if float64(count) >= d.cfg.maxWindowRequests() {
		return false, ReasonRateExceeded
	}
	return true, ReasonAllowed
}

// MakeRequest counts one request against the shared window if it is under
// the cap.
func (d *DistributedLimiter) MakeRequest(ctx context.Context, p Priority) bool {
	allowed, reason := d.admit(ctx)
	if !allowed {
		d.logger.Warn("TMDb API request blocked",
			zap.String("priority", string(p)),
			zap.String("reason", reason),
		)
		return false
	}
	d.logger.Debug("TMDb API request allowed", zap.String("priority", string(p)))
	return true
}

// RecordSuccess is a no-op; the distributed variant keeps no backoff state.
func (d *DistributedLimiter) RecordSuccess() {}

// RecordError only logs the failure.
func (d *DistributedLimiter) RecordError(errorType string) {
	d.logger.Warn("TMDb API error recorded", zap.String("type", errorType))
}

// GetStats reads the shared counter. On store failure it reports an empty
// window.
func (d *DistributedLimiter) GetStats(ctx context.Context) Stats {
	stats := Stats{
		Variant:                VariantDistributed,
		WindowSizeSeconds:      int(d.cfg.WindowSize / time.Second),
		RequestsPerSecondLimit: d.cfg.RequestsPerSecond,
	}
	count, _, err := d.store.Get(ctx, d.key)
	if err != nil {
		d.logger.Error("Cache error reading rate limiter stats", zap.String("key", d.key), zap.Error(err))
		return stats
	}
	stats.RequestsInWindow = int(count)
	return stats
}

// WaitIfNeeded retries MakeRequest every poll interval until it succeeds,
// maxWait elapses or ctx is done.
func (d *DistributedLimiter) WaitIfNeeded(ctx context.Context, p Priority, maxWait time.Duration) bool {
	admitted, err := poll(ctx, maxWait, d.pollInterval, func() bool {
		ok, _ := d.admit(ctx)
		return ok
	})
	if !admitted {
		d.logger.Error("TMDb API rate limiter wait gave up",
			zap.String("priority", string(p)),
			zap.Duration("max_wait", maxWait),
			zap.Error(err),
		)
	}
	return admitted
}

func (d *DistributedLimiter) admit(ctx context.Context) (bool, string) {
	limit := d.cfg.maxWindowRequests()

	count, _, err := d.store.Get(ctx, d.key)
	if err != nil {
		d.logger.Error("Cache error recording request", zap.String("key", d.key), zap.Error(err))
		return true, ReasonStoreError
	}
	// Denied attempts never write, so a full window still expires on time.
	if float64(count) >= limit {
		return false, ReasonRateExceeded
	}

	if d.strict {
		n, err := d.store.Incr(ctx, d.key, d.cfg.WindowSize)
		if err != nil {
			d.logger.Error("Cache error recording request", zap.String("key", d.key), zap.Error(err))
			return true, ReasonStoreError
		}
		// Lost a race for the last slot.
		if float64(n) > limit {
			return false, ReasonRateExceeded
		}
		return true, ReasonAllowed
	}

	if err := d.store.Set(ctx, d.key, count+1, d.cfg.WindowSize); err != nil {
		d.logger.Error("Cache error recording request", zap.String("key", d.key), zap.Error(err))
	}
	return true, ReasonAllowed
}
