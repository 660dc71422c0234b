package limiter

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds the startup probe of the shared store.
const DefaultProbeTimeout = 2 * time.Second

// Selection is the limiter chosen at startup. It never changes afterwards.
type Selection struct {
	Variant Variant
	Limiter RateLimiter
}

// Select probes store once and returns the distributed variant when the probe
// succeeds, otherwise the in-process variant. A nil store selects in-process.
func Select(ctx context.Context, store CounterStore, cfg Config, opts ...Option) *Selection {
	logger := newOptions(opts).logger

	if store == nil {
		logger.Info("Rate limiter selected", zap.String("variant", string(VariantInProcess)))
		return &Selection{Variant: VariantInProcess, Limiter: NewInProcess(cfg, opts...)}
	}

	probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	if err := store.Probe(probeCtx); err != nil {
		logger.Warn("Shared store unavailable, using in-process rate limiter", zap.Error(err))
		return &Selection{Variant: VariantInProcess, Limiter: NewInProcess(cfg, opts...)}
	}

	logger.Info("Rate limiter selected", zap.String("variant", string(VariantDistributed)))
	return &Selection{Variant: VariantDistributed, Limiter: NewDistributed(store, cfg, opts...)}
}

// Info describes the selected limiter for dashboards.
func (s *Selection) Info() map[string]interface{} {
	info := map[string]interface{}{
		"current": s.Variant,
	}

	switch s.Variant {
	case VariantDistributed:
		info["description"] = "Shared counter per window across processes; fails open when the store is down."
	default:
		info["description"] = "Token bucket with sliding window cap and exponential backoff, local to this process."
	}

	return info
}
