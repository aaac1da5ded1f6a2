package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("allows up to the limit and rejects the next request", func(t *testing.T) {
		limiter := NewMemoryLimiter(3, time.Minute, WithMemoryClock(func() time.Time { return base }))

		for i := 0; i < 3; i++ {
			result, err := limiter.Allow(ctx, "ip-1")
			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, 3, result.Limit)
			assert.Equal(t, 2-i, result.Remaining)
		}

		result, err := limiter.Allow(ctx, "ip-1")
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
	})

	t.Run("keys are counted independently", func(t *testing.T) {
		limiter := NewMemoryLimiter(1, time.Minute, WithMemoryClock(func() time.Time { return base }))

		result, err := limiter.Allow(ctx, "ip-1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = limiter.Allow(ctx, "ip-2")
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = limiter.Allow(ctx, "ip-1")
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	})

	t.Run("a new window resets the count", func(t *testing.T) {
		now := base
		limiter := NewMemoryLimiter(1, time.Minute, WithMemoryClock(func() time.Time { return now }))

		result, err := limiter.Allow(ctx, "ip-1")
		require.NoError(t, err)
		require.True(t, result.Allowed)

		result, err = limiter.Allow(ctx, "ip-1")
		require.NoError(t, err)
		require.False(t, result.Allowed)

		now = base.Add(time.Minute)

		result, err = limiter.Allow(ctx, "ip-1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("reset time is the end of the current window", func(t *testing.T) {
		at := base.Add(23 * time.Second)
		limiter := NewMemoryLimiter(5, time.Minute, WithMemoryClock(func() time.Time { return at }))

		result, err := limiter.Allow(ctx, "ip-1")
		require.NoError(t, err)
		assert.Equal(t, base.Add(time.Minute), result.ResetAt)
	})

	t.Run("sweep drops only expired windows", func(t *testing.T) {
		now := base
		limiter := NewMemoryLimiter(10, time.Minute, WithMemoryClock(func() time.Time { return now }))

		_, err := limiter.Allow(ctx, "old")
		require.NoError(t, err)

		now = base.Add(2 * time.Minute)
		_, err = limiter.Allow(ctx, "fresh")
		require.NoError(t, err)

		limiter.Sweep()

		assert.NotContains(t, limiter.windows, "old")
		assert.Contains(t, limiter.windows, "fresh")
	})
}
