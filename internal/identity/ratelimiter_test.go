package identity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func TestRateLimiterAdmitsWithinCapacity(t *testing.T) {
	client := newTestRedisClient(t)
	limiter := NewRateLimiter(client, 10, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Wait(ctx, "test", 2))
	}
}

func TestRateLimiterBlocksOverCapacity(t *testing.T) {
	client := newTestRedisClient(t)
	limiter := NewRateLimiter(client, 4, time.Minute)
	limiter.perIterationCap = 50 * time.Millisecond
	limiter.hardCeiling = 200 * time.Millisecond

	ctx := context.Background()
	require.NoError(t, limiter.Wait(ctx, "test", 4))

	err := limiter.Wait(ctx, "test", 2)
	require.Error(t, err)
}

func TestRateLimiterReconcileZeroDeltaIsNoop(t *testing.T) {
	client := newTestRedisClient(t)
	limiter := NewRateLimiter(client, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Reconcile(ctx, "test", 0))
	held, err := limiter.Held(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, 0, held)
}

func TestRateLimiterReconcilePositiveAndNegativeDeltasAdjustHeld(t *testing.T) {
	client := newTestRedisClient(t)
	limiter := NewRateLimiter(client, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Reconcile(ctx, "test", 5))
	held, err := limiter.Held(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, 5, held)

	require.NoError(t, limiter.Reconcile(ctx, "test", -2))
	held, err = limiter.Held(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, 3, held)
}

func TestRateLimiterRemainingReflectsCapacityMinusHeld(t *testing.T) {
	client := newTestRedisClient(t)
	limiter := NewRateLimiter(client, 10, time.Minute)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "test", 4))
	remaining, err := limiter.Remaining(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, 6, remaining)
}

func TestResponseCost(t *testing.T) {
	cases := map[int]int{
		200: 2,
		201: 2,
		301: 1,
		404: 5,
		420: 5,
		429: 0,
		500: 0,
		503: 0,
	}
	for status, want := range cases {
		require.Equal(t, want, ResponseCost(status), "status %d", status)
	}
}

func TestErrorBudgetBlocksAfterThreshold(t *testing.T) {
	client := newTestRedisClient(t)
	budget := NewErrorBudget(client)
	budget.cap = 3

	ctx := context.Background()
	var blocked bool
	var err error
	for i := 0; i < 3; i++ {
		blocked, err = budget.RecordAndCheck(ctx, true)
		require.NoError(t, err)
	}
	require.True(t, blocked)
}

func TestErrorBudgetIgnoresSuccesses(t *testing.T) {
	client := newTestRedisClient(t)
	budget := NewErrorBudget(client)
	budget.cap = 2

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		blocked, err := budget.RecordAndCheck(ctx, false)
		require.NoError(t, err)
		require.False(t, blocked)
	}
}
