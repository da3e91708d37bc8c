package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/railbook/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAllowsBurstThenDenies(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLocal(3, c)

	for i := 0; i < 3; i++ {
		res, err := l.Allow(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.InDelta(t, float64(20*time.Second), float64(res.RetryAfter), float64(time.Second))

	other, err := l.Allow(context.Background(), "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLocalRefillsOverTime(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLocal(60, c)

	for i := 0; i < 60; i++ {
		res, _ := l.Allow(context.Background(), "k")
		require.True(t, res.Allowed)
	}
	res, _ := l.Allow(context.Background(), "k")
	assert.False(t, res.Allowed)

	c.Advance(time.Second)
	res, _ = l.Allow(context.Background(), "k")
	assert.True(t, res.Allowed)
}

func TestLocalSweepsIdleKeys(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLocal(60, c)
	_, _ = l.Allow(context.Background(), "old")

	c.Advance(idleTTL + time.Minute)
	_, _ = l.Allow(context.Background(), "new")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "old")
	assert.Contains(t, l.buckets, "new")
}

func TestTokenBucketHelpers(t *testing.T) {
	assert.Nil(t, NewTokenBucket(nil, 60))
	assert.Equal(t, 120*time.Second, bucketTTL(1, 60))
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(0), toInt(nil))
	assert.InDelta(t, 2.5, toFloat("2.5"), 0.0001)
}
