package ratelimit

import (
	"context"
	"testing"
	"time"

	"cmsdl/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(60, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "token %d should be available", i+1)
	}
	assert.False(t, tb.Allow(), "bucket should be empty after the burst")
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, tb.Wait(ctx))
}

func TestTokenBucketWaitRefills(t *testing.T) {
	tb := NewTokenBucket(1200, 1) // one token every 50ms
	require.True(t, tb.Allow())

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestFromConfig(t *testing.T) {
	_, unlimited := FromConfig(config.RateLimitConfig{}).(Unlimited)
	assert.True(t, unlimited)

	_, bucket := FromConfig(config.RateLimitConfig{RequestsPerMinute: 30, BurstSize: 2}).(*TokenBucket)
	assert.True(t, bucket)
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
	assert.NoError(t, l.Wait(context.Background()))
}
