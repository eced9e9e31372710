package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/quiz-scheduler-api/pkg/config"
)

type attemptCounters interface {
	CountSince(ctx context.Context, studentID, quizID string, since time.Time) (int, error)
	CountDistinctQuizzesSince(ctx context.Context, studentID string, since time.Time) (int, error)
}

// AbuseGuard maintains the sliding-window counters behind the anti-abuse
// heuristics. Redis is the fast path; when it is absent or failing the guard
// falls back to counting attempt rows in the store. Either path failing is
// reported to the caller, which applies the fail-open policy.
type AbuseGuard struct {
	redis    *redis.Client
	attempts attemptCounters
	cfg      config.AntiAbuseConfig
	logger   *zap.Logger
}

// NewAbuseGuard constructs the guard. The redis client may be nil.
func NewAbuseGuard(rdb *redis.Client, attempts attemptCounters, cfg config.AntiAbuseConfig, logger *zap.Logger) *AbuseGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AbuseGuard{redis: rdb, attempts: attempts, cfg: cfg, logger: logger}
}

// RecordStart bumps the fast-path counters after an attempt is created.
// Failures are logged and swallowed: the store rows remain the source of
// truth for the fallback counts.
func (g *AbuseGuard) RecordStart(ctx context.Context, studentID, quizID string, now time.Time) {
	if g.redis == nil {
		return
	}

	rateKey := startRateKey(studentID, quizID)
	spreeKey := quizSpreeKey(studentID)

	pipe := g.redis.TxPipeline()
	incr := pipe.Incr(ctx, rateKey)
	pipe.ZAdd(ctx, spreeKey, redis.Z{Score: float64(now.UnixMilli()), Member: quizID})
	pipe.Expire(ctx, spreeKey, g.cfg.DistinctQuizWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		g.logger.Warn("failed to record start counters in redis", zap.Error(err))
		return
	}

	// The TTL is set only when the counter is created, anchoring the rate
	// window at the first start instead of sliding it with every start.
	if incr.Val() == 1 {
		if err := g.redis.Expire(ctx, rateKey, g.cfg.StartRateWindow).Err(); err != nil {
			g.logger.Warn("failed to set start counter expiry", zap.Error(err))
		}
	}
}

// StartCount returns how many attempts the student started on the quiz
// within the rate window.
func (g *AbuseGuard) StartCount(ctx context.Context, studentID, quizID string, now time.Time) (int, error) {
	if g.redis != nil {
		count, err := g.redis.Get(ctx, startRateKey(studentID, quizID)).Int()
		if err == nil {
			return count, nil
		}
		if err == redis.Nil {
			return 0, nil
		}
		g.logger.Warn("redis start count failed, falling back to store", zap.Error(err))
	}
	return g.attempts.CountSince(ctx, studentID, quizID, now.Add(-g.cfg.StartRateWindow))
}

// DistinctQuizCount returns how many distinct quizzes the student started
// attempts on within the spree window.
func (g *AbuseGuard) DistinctQuizCount(ctx context.Context, studentID string, now time.Time) (int, error) {
	if g.redis != nil {
		key := quizSpreeKey(studentID)
		cutoff := now.Add(-g.cfg.DistinctQuizWindow).UnixMilli()
		pipe := g.redis.TxPipeline()
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
		card := pipe.ZCard(ctx, key)
		_, err := pipe.Exec(ctx)
		if err == nil {
			return int(card.Val()), nil
		}
		g.logger.Warn("redis spree count failed, falling back to store", zap.Error(err))
	}
	return g.attempts.CountDistinctQuizzesSince(ctx, studentID, now.Add(-g.cfg.DistinctQuizWindow))
}

func startRateKey(studentID, quizID string) string {
	return fmt.Sprintf("abuse:start_rate:%s:%s", studentID, quizID)
}

func quizSpreeKey(studentID string) string {
	return fmt.Sprintf("abuse:quiz_spree:%s", studentID)
}
