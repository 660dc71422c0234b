package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWaitIfNeeded_ImmediateAdmit(t *testing.T) {
	l, _ := newTestLimiter(Config{})

	start := time.Now()
	assert.True(t, l.WaitIfNeeded(ctx, PriorityHigh, time.Second))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, l.GetStats(ctx).RequestsInWindow)
}

func TestWaitIfNeeded_Timeout(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	// the fake clock never moves, so the bucket never refills
	l, _ := newTestLimiter(Config{BurstCapacity: 1}, WithLogger(zap.New(core)))
	require.True(t, l.MakeRequest(ctx, PriorityHigh))

	start := time.Now()
	admitted := l.WaitIfNeeded(ctx, PriorityHigh, time.Second)
	elapsed := time.Since(start)

	assert.False(t, admitted)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	gaveUp := logs.FilterMessage("TMDb API rate limiter wait gave up").All()
	require.Len(t, gaveUp, 1)
	assert.Equal(t, zapcore.ErrorLevel, gaveUp[0].Level)

	// polling attempts are not logged as blocked requests
	assert.Equal(t, 0, logs.FilterMessage("TMDb API request blocked").Len())
}

func TestWaitIfNeeded_AdmittedAfterRefill(t *testing.T) {
	l, clock := newTestLimiter(Config{BurstCapacity: 1}, WithPollInterval(10*time.Millisecond))
	require.True(t, l.MakeRequest(ctx, PriorityHigh))

	go func() {
		time.Sleep(50 * time.Millisecond)
		clock.Advance(time.Second)
	}()

	start := time.Now()
	assert.True(t, l.WaitIfNeeded(ctx, PriorityHigh, 2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2, l.GetStats(ctx).RequestsInWindow)
}

func TestWaitIfNeeded_AdmittedAfterBackoff(t *testing.T) {
	l, clock := newTestLimiter(Config{}, WithPollInterval(10*time.Millisecond))
	l.RecordError("server_error") // 2s cooldown on the fake clock

	go func() {
		time.Sleep(30 * time.Millisecond)
		clock.Advance(2 * time.Second)
	}()

	assert.True(t, l.WaitIfNeeded(ctx, PriorityMedium, time.Second))
}

func TestWaitIfNeeded_ContextCanceled(t *testing.T) {
	l, _ := newTestLimiter(Config{BurstCapacity: 1})
	require.True(t, l.MakeRequest(ctx, PriorityHigh))

	cctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	assert.False(t, l.WaitIfNeeded(cctx, PriorityHigh, 5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitIfNeeded_AlreadyCanceled(t *testing.T) {
	l, _ := newTestLimiter(Config{})

	cctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, l.WaitIfNeeded(cctx, PriorityHigh, time.Second))
	assert.Equal(t, 10.0, l.GetStats(ctx).TokensAvailable)
}

func TestWaitIfNeeded_ZeroMaxWait(t *testing.T) {
	l, _ := newTestLimiter(Config{BurstCapacity: 1})

	assert.True(t, l.WaitIfNeeded(ctx, PriorityHigh, 0))
	assert.False(t, l.WaitIfNeeded(ctx, PriorityHigh, 0))
}
