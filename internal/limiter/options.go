package limiter

import (
	"time"

	"go.uber.org/zap"
)

// Defaults for TMDb's published quota.
const (
	DefaultRequestsPerSecond = 40
	DefaultBurstCapacity     = 10
	DefaultWindowSize        = 60 * time.Second
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultKeyPrefix         = "tmdb_rate_limit"
)

// Config holds the quota parameters, read once at construction.
type Config struct {
	RequestsPerSecond float64
	BurstCapacity     float64
	WindowSize        time.Duration
}

func (c Config) withDefaults() Config {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.BurstCapacity <= 0 {
		c.BurstCapacity = DefaultBurstCapacity
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	return c
}

// maxWindowRequests is the sliding window cap: RequestsPerSecond scaled by
// the window length in minutes.
func (c Config) maxWindowRequests() float64 {
	return c.RequestsPerSecond * (c.WindowSize.Seconds() / 60)
}

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

type options struct {
	clock        Clock
	logger       *zap.Logger
	pollInterval time.Duration
	keyPrefix    string
	strict       bool
}

// Option configures a limiter.
type Option func(*options)

// WithClock replaces time.Now as the admission clock.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger used for admission warnings and traces.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPollInterval sets how often WaitIfNeeded retries admission.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithKeyPrefix sets the shared-store key prefix of the distributed variant.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithStrictCounting makes the distributed variant use the store's atomic
// increment instead of get-then-set.
func WithStrictCounting(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

func newOptions(opts []Option) options {
	o := options{
		clock:        time.Now,
		logger:       zap.NewNop(),
		pollInterval: DefaultPollInterval,
		keyPrefix:    DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
