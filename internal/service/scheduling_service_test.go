package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	"github.com/noah-isme/quiz-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
)

type mockQuizRepo struct {
	quizzes   map[string]models.Quiz
	created   *models.Quiz
	statuses  map[string]models.QuizStatus
	scheduled *models.Quiz
}

func (m *mockQuizRepo) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	if q, ok := m.quizzes[id]; ok {
		return &q, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockQuizRepo) List(ctx context.Context, filter models.QuizFilter) ([]models.Quiz, int, error) {
	var list []models.Quiz
	for _, q := range m.quizzes {
		list = append(list, q)
	}
	return list, len(list), nil
}

func (m *mockQuizRepo) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = "new-quiz"
	}
	if m.quizzes == nil {
		m.quizzes = make(map[string]models.Quiz)
	}
	m.quizzes[quiz.ID] = *quiz
	m.created = quiz
	return nil
}

func (m *mockQuizRepo) UpdateStatus(ctx context.Context, id string, status models.QuizStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.QuizStatus)
	}
	m.statuses[id] = status
	if q, ok := m.quizzes[id]; ok {
		q.Status = status
		m.quizzes[id] = q
	}
	return nil
}

func (m *mockQuizRepo) UpdateSchedule(ctx context.Context, quiz *models.Quiz) error {
	m.quizzes[quiz.ID] = *quiz
	m.scheduled = quiz
	return nil
}

func newTestSchedulingService(t *testing.T, repo *mockQuizRepo) *SchedulingService {
	t.Helper()
	tz, err := NewTimezoneService("UTC", zap.NewNop(), nil)
	require.NoError(t, err)
	cfg := config.SchedulingConfig{
		MinStartBuffer:  5 * time.Minute,
		MaxFutureWindow: 365 * 24 * time.Hour,
		DefaultTimezone: "UTC",
	}
	return NewSchedulingService(repo, tz, cfg, validator.New(), zap.NewNop())
}

func TestSchedulingServiceCanPublish(t *testing.T) {
	svc := newTestSchedulingService(t, &mockQuizRepo{})
	now := time.Date(2024, time.June, 14, 12, 0, 0, 0, time.UTC)
	soon := now.Add(3 * time.Minute)
	later := now.Add(10 * time.Minute)

	tests := []struct {
		name    string
		quiz    models.Quiz
		allowed bool
	}{
		{"draft with future start", models.Quiz{Status: models.QuizStatusDraft, SchedulingMode: models.SchedulingModeScheduled, StartTimeUTC: &later}, true},
		{"start inside buffer", models.Quiz{Status: models.QuizStatusDraft, SchedulingMode: models.SchedulingModeScheduled, StartTimeUTC: &soon}, false},
		{"deferred without start time", models.Quiz{Status: models.QuizStatusDraft, SchedulingMode: models.SchedulingModeDeferred}, false},
		{"already published", models.Quiz{Status: models.QuizStatusPublished, StartTimeUTC: &later}, false},
		{"archived", models.Quiz{Status: models.QuizStatusArchived, StartTimeUTC: &later}, false},
		{"legacy start from time configuration", models.Quiz{Status: models.QuizStatusDraft, SchedulingMode: models.SchedulingModeLegacy, TimeConfiguration: &models.TimeConfiguration{StartTime: &later, IsLegacy: true}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := svc.CanPublish(&tc.quiz, now)
			assert.Equal(t, tc.allowed, d.Allowed, d.Reason)
		})
	}
}

func TestSchedulingServiceCanReschedule(t *testing.T) {
	svc := newTestSchedulingService(t, &mockQuizRepo{})
	now := time.Date(2024, time.June, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, svc.CanReschedule(&models.Quiz{SchedulingMode: models.SchedulingModeLegacy, StartTimeUTC: &future}, now).Allowed)
	assert.False(t, svc.CanReschedule(&models.Quiz{SchedulingMode: models.SchedulingModeScheduled, Status: models.QuizStatusCompleted, StartTimeUTC: &future}, now).Allowed)
	assert.False(t, svc.CanReschedule(&models.Quiz{SchedulingMode: models.SchedulingModeScheduled, Status: models.QuizStatusPublished, StartTimeUTC: &past}, now).Allowed)
	assert.True(t, svc.CanReschedule(&models.Quiz{SchedulingMode: models.SchedulingModeScheduled, Status: models.QuizStatusPublished, StartTimeUTC: &future}, now).Allowed)
	assert.True(t, svc.CanReschedule(&models.Quiz{SchedulingMode: models.SchedulingModeDeferred, Status: models.QuizStatusDraft}, now).Allowed)
}

func TestSchedulingServiceCanEnroll(t *testing.T) {
	svc := newTestSchedulingService(t, &mockQuizRepo{})
	now := time.Date(2024, time.June, 14, 12, 0, 0, 0, time.UTC)
	started := now.Add(-10 * time.Minute)
	ended := now.Add(-2 * time.Hour)

	assert.False(t, svc.CanEnroll(&models.Quiz{Status: models.QuizStatusDraft}, now).Allowed)
	assert.True(t, svc.CanEnroll(&models.Quiz{Status: models.QuizStatusPublished, SchedulingMode: models.SchedulingModeDeferred}, now).Allowed)
	assert.True(t, svc.CanEnroll(&models.Quiz{Status: models.QuizStatusPublished, SchedulingMode: models.SchedulingModeScheduled, StartTimeUTC: &started, DurationMinutes: 30}, now).Allowed)
	assert.False(t, svc.CanEnroll(&models.Quiz{Status: models.QuizStatusPublished, SchedulingMode: models.SchedulingModeScheduled, StartTimeUTC: &ended, DurationMinutes: 30}, now).Allowed)
}

func TestSchedulingServiceValidateProposedStartTime(t *testing.T) {
	svc := newTestSchedulingService(t, &mockQuizRepo{})
	now := time.Date(2024, time.June, 14, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, svc.ValidateProposedStartTime(now.Add(10*time.Minute), now))

	err := svc.ValidateProposedStartTime(now.Add(2*time.Minute), now)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotSchedulable))

	err = svc.ValidateProposedStartTime(now.Add(400*24*time.Hour), now)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotSchedulable))
}

func TestSchedulingServiceCreateQuizDeferred(t *testing.T) {
	repo := &mockQuizRepo{}
	svc := newTestSchedulingService(t, repo)

	quiz, err := svc.CreateQuiz(context.Background(), CreateQuizRequest{Title: "Algebra Review", DurationMinutes: 30}, "educator-1")
	require.NoError(t, err)
	assert.Equal(t, models.QuizStatusDraft, quiz.Status)
	assert.Equal(t, models.SchedulingModeDeferred, quiz.SchedulingMode)
	assert.Nil(t, quiz.StartTimeUTC)
	assert.NotNil(t, repo.created)
}

func TestSchedulingServiceCreateQuizLegacy(t *testing.T) {
	repo := &mockQuizRepo{}
	svc := newTestSchedulingService(t, repo)

	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	base := time.Now().In(loc)
	start := time.Date(base.Year(), base.Month(), base.Day(), 9, 0, 0, 0, loc).AddDate(0, 0, 30)

	req := CreateQuizRequest{
		Title:           "History Final",
		DurationMinutes: 45,
		SchedulingMode:  "legacy",
		LocalStartTime:  start.Format("2006-01-02T15:04"),
		Timezone:        "Asia/Jakarta",
	}
	quiz, err := svc.CreateQuiz(context.Background(), req, "educator-1")
	require.NoError(t, err)

	require.NotNil(t, quiz.StartTimeUTC)
	assert.Equal(t, start.UTC(), *quiz.StartTimeUTC)
	require.NotNil(t, quiz.TimeConfiguration)
	assert.True(t, quiz.TimeConfiguration.IsLegacy)
	assert.Equal(t, "Asia/Jakarta", quiz.TimeConfiguration.Timezone)

	_, err = svc.CreateQuiz(context.Background(), CreateQuizRequest{Title: "No Start", DurationMinutes: 30, SchedulingMode: "legacy"}, "educator-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	// A start time already in the past is rejected at creation, not just
	// at publish.
	past := req
	past.LocalStartTime = start.AddDate(0, -2, 0).Format("2006-01-02T15:04")
	_, err = svc.CreateQuiz(context.Background(), past, "educator-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotSchedulable))
}

func TestSchedulingServicePublish(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)
	repo := &mockQuizRepo{quizzes: map[string]models.Quiz{
		"q1": {ID: "q1", Status: models.QuizStatusDraft, SchedulingMode: models.SchedulingModeScheduled, StartTimeUTC: &future},
		"q2": {ID: "q2", Status: models.QuizStatusPublished, StartTimeUTC: &future},
	}}
	svc := newTestSchedulingService(t, repo)

	quiz, err := svc.Publish(context.Background(), "q1", "educator-1")
	require.NoError(t, err)
	assert.Equal(t, models.QuizStatusPublished, quiz.Status)
	assert.Equal(t, models.QuizStatusPublished, repo.statuses["q1"])

	_, err = svc.Publish(context.Background(), "q2", "educator-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyPublished))

	_, err = svc.Publish(context.Background(), "missing", "educator-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSchedulingServiceSchedule(t *testing.T) {
	repo := &mockQuizRepo{quizzes: map[string]models.Quiz{
		"q1": {ID: "q1", Status: models.QuizStatusDraft, SchedulingMode: models.SchedulingModeDeferred, AuthoringTimezone: "UTC", DurationMinutes: 30},
	}}
	svc := newTestSchedulingService(t, repo)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	base := time.Now().In(loc)
	first := time.Date(base.Year(), base.Month(), base.Day(), 9, 0, 0, 0, loc).AddDate(0, 0, 30)

	quiz, err := svc.Schedule(context.Background(), "q1", ScheduleQuizRequest{LocalStartTime: first.Format("2006-01-02T15:04"), Timezone: "America/New_York"}, "educator-1")
	require.NoError(t, err)

	assert.Equal(t, models.SchedulingModeScheduled, quiz.SchedulingMode)
	require.NotNil(t, quiz.StartTimeUTC)
	assert.Equal(t, first.UTC(), *quiz.StartTimeUTC)
	require.NotNil(t, quiz.TimeConfiguration)
	assert.Equal(t, "America/New_York", quiz.TimeConfiguration.Timezone)
	assert.Nil(t, quiz.TimeConfiguration.PreviousStartTime)
	assert.NotNil(t, repo.scheduled)

	// A second schedule records the prior values for audit.
	second := first.AddDate(0, 0, 14)
	quiz, err = svc.Schedule(context.Background(), "q1", ScheduleQuizRequest{LocalStartTime: second.Format("2006-01-02T15:04"), Timezone: "America/New_York"}, "educator-1")
	require.NoError(t, err)
	require.NotNil(t, quiz.TimeConfiguration.PreviousStartTime)
	assert.Equal(t, first.UTC(), *quiz.TimeConfiguration.PreviousStartTime)
	assert.NotNil(t, quiz.TimeConfiguration.RescheduledAt)
}

func TestSchedulingServiceScheduleRejectsLegacyAndBadZones(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)
	repo := &mockQuizRepo{quizzes: map[string]models.Quiz{
		"legacy": {ID: "legacy", Status: models.QuizStatusDraft, SchedulingMode: models.SchedulingModeLegacy, StartTimeUTC: &future},
		"q1":     {ID: "q1", Status: models.QuizStatusDraft, SchedulingMode: models.SchedulingModeDeferred},
	}}
	svc := newTestSchedulingService(t, repo)

	_, err := svc.Schedule(context.Background(), "legacy", ScheduleQuizRequest{LocalStartTime: "2030-06-14T09:00", Timezone: "UTC"}, "educator-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.Schedule(context.Background(), "q1", ScheduleQuizRequest{LocalStartTime: "2030-06-14T09:00", Timezone: "Not/AZone"}, "educator-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTimezone))
}
