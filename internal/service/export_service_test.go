package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
)

type mockAttemptLister struct {
	attempts []models.QuizAttempt
}

func (m *mockAttemptLister) ListByQuiz(ctx context.Context, quizID string) ([]models.QuizAttempt, error) {
	return m.attempts, nil
}

func TestExportServiceCSV(t *testing.T) {
	start := time.Date(2024, time.June, 14, 2, 0, 0, 0, time.UTC)
	end := start.Add(20 * time.Minute)
	score := 0.8

	quizzes := &mockQuizRepo{quizzes: map[string]models.Quiz{
		"q1": {ID: "q1", Title: "History Final", AuthoringTimezone: "Asia/Jakarta", DurationMinutes: 45, StartTimeUTC: &start},
	}}
	attempts := &mockAttemptLister{attempts: []models.QuizAttempt{
		{ID: "a1", QuizID: "q1", StudentID: "s1", Status: models.AttemptStatusCompleted, StartTimeUTC: start, EndTimeUTC: &end, Score: &score},
		{ID: "a2", QuizID: "q1", StudentID: "s2", Status: models.AttemptStatusAbandoned, StartTimeUTC: start},
	}}

	tz, err := NewTimezoneService("UTC", zap.NewNop(), nil)
	require.NoError(t, err)
	svc := NewExportService(quizzes, attempts, tz, zap.NewNop())

	result, err := svc.ExportAttempts(context.Background(), "q1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "quiz-q1-attempts.csv", result.Filename)

	content := string(result.Content)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Status,Started,Submitted,Score", lines[0])
	// Times render in the quiz's authoring zone: 02:00 UTC is 09:00 WIB.
	assert.Contains(t, lines[1], "s1,completed")
	assert.Contains(t, lines[1], "9:00 AM WIB")
	assert.Contains(t, lines[1], "80%")
	assert.Contains(t, lines[2], "s2,abandoned")
}

func TestExportServicePDF(t *testing.T) {
	start := time.Date(2024, time.June, 14, 2, 0, 0, 0, time.UTC)
	quizzes := &mockQuizRepo{quizzes: map[string]models.Quiz{
		"q1": {ID: "q1", Title: "History Final", AuthoringTimezone: "UTC", DurationMinutes: 45, StartTimeUTC: &start},
	}}
	tz, err := NewTimezoneService("UTC", zap.NewNop(), nil)
	require.NoError(t, err)
	svc := NewExportService(quizzes, &mockAttemptLister{}, tz, zap.NewNop())

	result, err := svc.ExportAttempts(context.Background(), "q1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportServiceRejectsUnknownFormatAndQuiz(t *testing.T) {
	tz, err := NewTimezoneService("UTC", zap.NewNop(), nil)
	require.NoError(t, err)
	svc := NewExportService(&mockQuizRepo{}, &mockAttemptLister{}, tz, zap.NewNop())

	_, err = svc.ExportAttempts(context.Background(), "q1", "xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.ExportAttempts(context.Background(), "missing", "csv")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
