package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLimiter_ExhaustAndReset(t *testing.T) {
	limiter := NewTokenBucketLimiter(2, time.Hour)
	defer limiter.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "conn-1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}

	allowed, err := limiter.Allow(ctx, "conn-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Other keys have their own bucket
	allowed, err = limiter.Allow(ctx, "conn-2")
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "conn-1"))
	allowed, err = limiter.Allow(ctx, "conn-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTokenBucketLimiter_Refill(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 10*time.Millisecond)
	defer limiter.Close()
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "conn-1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "conn-1")
	require.NoError(t, err)
	require.False(t, allowed)

	time.Sleep(15 * time.Millisecond)
	allowed, err = limiter.Allow(ctx, "conn-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTokenBucketLimiter_CloseIsIdempotent(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, time.Hour)

	assert.NotPanics(t, limiter.Close)
	assert.NotPanics(t, limiter.Close)

	// Allow keeps working after Close
	allowed, err := limiter.Allow(context.Background(), "conn-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
