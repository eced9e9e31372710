package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	"github.com/noah-isme/quiz-scheduler-api/pkg/config"
)

type mockReaperAttempts struct {
	mu       sync.Mutex
	attempts map[string]models.QuizAttempt
	listErr  error
	swept    []string
}

func (m *mockReaperAttempts) MarkAbandoned(ctx context.Context, olderThan time.Time, quizID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swept = append(m.swept, quizID)
	var reaped int64
	for id, a := range m.attempts {
		if a.Status != models.AttemptStatusInProgress {
			continue
		}
		if quizID != "" && a.QuizID != quizID {
			continue
		}
		if a.StartTimeUTC.Before(olderThan) {
			a.Status = models.AttemptStatusAbandoned
			m.attempts[id] = a
			reaped++
		}
	}
	return reaped, nil
}

func (m *mockReaperAttempts) ListStaleQuizIDs(ctx context.Context, olderThan time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	seen := make(map[string]bool)
	var ids []string
	for _, a := range m.attempts {
		if a.Status == models.AttemptStatusInProgress && a.StartTimeUTC.Before(olderThan) && !seen[a.QuizID] {
			seen[a.QuizID] = true
			ids = append(ids, a.QuizID)
		}
	}
	return ids, nil
}

func newTestReaperService(attempts *mockReaperAttempts) *ReaperService {
	cfg := config.ReaperConfig{
		Enabled:     true,
		Interval:    10 * time.Minute,
		StaleAfter:  2 * time.Hour,
		Concurrency: 2,
		MaxRetries:  1,
	}
	return NewReaperService(attempts, cfg, zap.NewNop(), nil)
}

func TestReaperSweepMarksStaleAttempts(t *testing.T) {
	now := time.Now().UTC()
	attempts := &mockReaperAttempts{attempts: map[string]models.QuizAttempt{
		"stale-1":  {ID: "stale-1", QuizID: "q1", Status: models.AttemptStatusInProgress, StartTimeUTC: now.Add(-3 * time.Hour)},
		"stale-2":  {ID: "stale-2", QuizID: "q2", Status: models.AttemptStatusInProgress, StartTimeUTC: now.Add(-5 * time.Hour)},
		"fresh":    {ID: "fresh", QuizID: "q1", Status: models.AttemptStatusInProgress, StartTimeUTC: now.Add(-10 * time.Minute)},
		"finished": {ID: "finished", QuizID: "q2", Status: models.AttemptStatusCompleted, StartTimeUTC: now.Add(-5 * time.Hour)},
	}}
	svc := newTestReaperService(attempts)

	reaped, err := svc.SweepAbandonedAttempts(context.Background(), now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), reaped)

	assert.Equal(t, models.AttemptStatusAbandoned, attempts.attempts["stale-1"].Status)
	assert.Equal(t, models.AttemptStatusAbandoned, attempts.attempts["stale-2"].Status)
	assert.Equal(t, models.AttemptStatusInProgress, attempts.attempts["fresh"].Status)
	assert.Equal(t, models.AttemptStatusCompleted, attempts.attempts["finished"].Status)
}

func TestReaperSweepIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	attempts := &mockReaperAttempts{attempts: map[string]models.QuizAttempt{
		"stale-1": {ID: "stale-1", QuizID: "q1", Status: models.AttemptStatusInProgress, StartTimeUTC: now.Add(-3 * time.Hour)},
	}}
	svc := newTestReaperService(attempts)

	first, err := svc.SweepAbandonedAttempts(context.Background(), now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := svc.SweepAbandonedAttempts(context.Background(), now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), second)
}

func TestReaperSweepFallsBackToGlobalOnListFailure(t *testing.T) {
	now := time.Now().UTC()
	attempts := &mockReaperAttempts{
		listErr: errStoreDown,
		attempts: map[string]models.QuizAttempt{
			"stale-1": {ID: "stale-1", QuizID: "q1", Status: models.AttemptStatusInProgress, StartTimeUTC: now.Add(-3 * time.Hour)},
		},
	}
	svc := newTestReaperService(attempts)

	reaped, err := svc.SweepAbandonedAttempts(context.Background(), now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reaped)
	assert.Equal(t, []string{""}, attempts.swept)
}
