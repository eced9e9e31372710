package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestQuizRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	start := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "educator_id", "title", "status", "scheduling_mode", "start_time_utc", "authoring_timezone", "duration_minutes", "time_configuration", "created_at", "updated_at"}).
		AddRow("quiz-1", "edu-1", "Midterm", models.QuizStatusPublished, models.SchedulingModeScheduled, start, "America/New_York", 60, []byte(`{"configured_by":"edu-1"}`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, educator_id, title, status, scheduling_mode, start_time_utc, authoring_timezone, duration_minutes, time_configuration, created_at, updated_at FROM quizzes WHERE id = $1")).
		WithArgs("quiz-1").
		WillReturnRows(rows)

	quiz, err := repo.FindByID(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.Equal(t, "Midterm", quiz.Title)
	require.NotNil(t, quiz.StartTimeUTC)
	require.True(t, quiz.StartTimeUTC.Equal(start))
	require.NotNil(t, quiz.TimeConfiguration)
	require.Equal(t, "edu-1", quiz.TimeConfiguration.ConfiguredBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectExec("INSERT INTO quizzes").
		WillReturnResult(sqlmock.NewResult(0, 1))

	quiz := &models.Quiz{EducatorID: "edu-1", Title: "Pop quiz", SchedulingMode: models.SchedulingModeDeferred, AuthoringTimezone: "UTC", DurationMinutes: 30}
	require.NoError(t, repo.Create(context.Background(), quiz))
	require.NotEmpty(t, quiz.ID)
	require.Equal(t, models.QuizStatusDraft, quiz.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE quizzes SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("quiz-1", models.QuizStatusPublished, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "quiz-1", models.QuizStatusPublished))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryListFiltersByEducator(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	rows := sqlmock.NewRows([]string{"id", "educator_id", "title", "status", "scheduling_mode", "start_time_utc", "authoring_timezone", "duration_minutes", "time_configuration", "created_at", "updated_at"}).
		AddRow("quiz-1", "edu-1", "Midterm", models.QuizStatusDraft, models.SchedulingModeDeferred, nil, "UTC", 45, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT .+ FROM quizzes WHERE educator_id = \\$1 ORDER BY created_at DESC").
		WithArgs("edu-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM quizzes WHERE educator_id = $1")).
		WithArgs("edu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	quizzes, total, err := repo.List(context.Background(), models.QuizFilter{EducatorID: "edu-1"})
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	require.Equal(t, 1, total)
	require.Nil(t, quizzes[0].StartTimeUTC)
	require.NoError(t, mock.ExpectationsWereMet())
}
