package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/user/tmdb-ratelimit/internal/limiter"
	"github.com/user/tmdb-ratelimit/internal/tmdb"
)

// PriorityHeader lets callers classify their request.
const PriorityHeader = "X-Request-Priority"

const reasonKey = "ratelimit.reason"

// PriorityFunc resolves the priority of a request.
type PriorityFunc func(c *gin.Context) limiter.Priority

// DefaultPriorityFunc reads PriorityHeader, defaulting to medium.
func DefaultPriorityFunc(c *gin.Context) limiter.Priority {
	return limiter.ParsePriority(c.GetHeader(PriorityHeader))
}

// FixedPriority always returns p.
func FixedPriority(p limiter.Priority) PriorityFunc {
	return func(*gin.Context) limiter.Priority {
		return p
	}
}

// RateLimitConfig configures the upstream rate limiting middleware.
type RateLimitConfig struct {
	Limiter      limiter.RateLimiter
	PriorityFunc PriorityFunc
	ErrHandler   gin.HandlerFunc
}

// DefaultErrHandler answers 429 with the limiter's reason.
func DefaultErrHandler(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":   "Too Many Requests",
		"message": "Upstream rate limit reached. Please try again later.",
		"reason":  c.GetString(reasonKey),
	})
	c.Abort()
}

// RateLimit gates a route that calls TMDb with the default configuration.
func RateLimit(rl limiter.RateLimiter) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{
		Limiter:      rl,
		PriorityFunc: DefaultPriorityFunc,
		ErrHandler:   DefaultErrHandler,
	})
}

// RateLimitWithConfig admits the request through the limiter before the
// handler runs and reports the upstream outcome afterwards. Handlers signal
// upstream failures with c.Error.
func RateLimitWithConfig(config RateLimitConfig) gin.HandlerFunc {
	if config.Limiter == nil {
		panic("RateLimiter is required")
	}
	if config.PriorityFunc == nil {
		config.PriorityFunc = DefaultPriorityFunc
	}
	if config.ErrHandler == nil {
		config.ErrHandler = DefaultErrHandler
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		priority := config.PriorityFunc(c)
		c.Header("X-RateLimit-Priority", string(priority))

		if !config.Limiter.MakeRequest(ctx, priority) {
			// Snapshot for the reason and headers only; admission was decided
			// above in one step.
			_, reason := config.Limiter.CanMakeRequest(ctx, priority)
			stats := config.Limiter.GetStats(ctx)
			setRemaining(c, stats)
			if stats.BackoffDelay > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(stats.BackoffDelay))))
			}
			c.Set(reasonKey, reason)
			config.ErrHandler(c)
			return
		}

		setRemaining(c, config.Limiter.GetStats(ctx))

		c.Next()

		if err := upstreamError(c); err != nil {
			config.Limiter.RecordError(tmdb.ErrorType(err))
			return
		}
		config.Limiter.RecordSuccess()
	}
}

func setRemaining(c *gin.Context, stats limiter.Stats) {
	c.Header("X-RateLimit-Remaining", strconv.FormatFloat(stats.Remaining(), 'f', 0, 64))
}

func upstreamError(c *gin.Context) error {
	for _, e := range c.Errors {
		if tmdb.IsUpstreamFailure(e.Err) {
			return e.Err
		}
	}
	return nil
}
