package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/quiz-scheduler-api/pkg/config"
)

type staticCounters struct {
	count    int
	distinct int
	err      error
}

func (c *staticCounters) CountSince(ctx context.Context, studentID, quizID string, since time.Time) (int, error) {
	return c.count, c.err
}

func (c *staticCounters) CountDistinctQuizzesSince(ctx context.Context, studentID string, since time.Time) (int, error) {
	return c.distinct, c.err
}

func newTestAbuseGuard(t *testing.T) (*AbuseGuard, *miniredis.Miniredis) {
	t.Helper()
	rs := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: rs.Addr()})
	cfg := config.AntiAbuseConfig{
		StartRateWindow:    5 * time.Minute,
		DistinctQuizWindow: 10 * time.Minute,
	}
	return NewAbuseGuard(rdb, &staticCounters{}, cfg, zap.NewNop()), rs
}

func TestAbuseGuardStartWindowAnchoredAtFirstStart(t *testing.T) {
	guard, rs := newTestAbuseGuard(t)
	ctx := context.Background()
	now := time.Now()

	guard.RecordStart(ctx, "s1", "q1", now)
	key := startRateKey("s1", "q1")
	assert.Equal(t, 5*time.Minute, rs.TTL(key))

	// Later starts bump the counter without pushing the expiry out.
	rs.FastForward(2 * time.Minute)
	guard.RecordStart(ctx, "s1", "q1", now.Add(2*time.Minute))
	guard.RecordStart(ctx, "s1", "q1", now.Add(2*time.Minute))

	count, err := guard.StartCount(ctx, "s1", "q1", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3*time.Minute, rs.TTL(key))

	// Once the window from the first start elapses the counter resets.
	rs.FastForward(3 * time.Minute)
	count, err = guard.StartCount(ctx, "s1", "q1", now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAbuseGuardDistinctQuizCountPrunesOldEntries(t *testing.T) {
	guard, _ := newTestAbuseGuard(t)
	ctx := context.Background()
	now := time.Now()

	guard.RecordStart(ctx, "s1", "q1", now.Add(-15*time.Minute))
	guard.RecordStart(ctx, "s1", "q2", now.Add(-2*time.Minute))
	guard.RecordStart(ctx, "s1", "q3", now)

	count, err := guard.DistinctQuizCount(ctx, "s1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAbuseGuardFallsBackToStoreWithoutRedis(t *testing.T) {
	counters := &staticCounters{count: 2, distinct: 4}
	cfg := config.AntiAbuseConfig{
		StartRateWindow:    5 * time.Minute,
		DistinctQuizWindow: 10 * time.Minute,
	}
	guard := NewAbuseGuard(nil, counters, cfg, zap.NewNop())

	count, err := guard.StartCount(context.Background(), "s1", "q1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	distinct, err := guard.DistinctQuizCount(context.Background(), "s1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, distinct)
}
