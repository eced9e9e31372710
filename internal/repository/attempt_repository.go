package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
)

// ErrDuplicateInProgress is returned when an insert collides with the
// partial unique index on (student_id, quiz_id) WHERE status =
// 'in_progress'. Callers resume the existing attempt instead of failing.
var ErrDuplicateInProgress = errors.New("an in-progress attempt already exists for this student and quiz")

// AttemptRepository handles persistence of quiz attempts.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository constructs the repository.
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptColumns = `id, quiz_id, student_id, enrollment_id, status, start_time_utc, end_time_utc, answers, score, created_at, updated_at`

// FindByID returns an attempt by its ID.
func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*models.QuizAttempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM quiz_attempts WHERE id = $1`, attemptColumns)
	var attempt models.QuizAttempt
	if err := r.db.GetContext(ctx, &attempt, query, id); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindInProgress returns the open attempt for the pair, or nil when none.
func (r *AttemptRepository) FindInProgress(ctx context.Context, studentID, quizID string) (*models.QuizAttempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM quiz_attempts WHERE student_id = $1 AND quiz_id = $2 AND status = $3 LIMIT 1`, attemptColumns)
	var attempt models.QuizAttempt
	if err := r.db.GetContext(ctx, &attempt, query, studentID, quizID, models.AttemptStatusInProgress); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find in-progress attempt: %w", err)
	}
	return &attempt, nil
}

// CountSince counts attempts created for the pair after the given instant.
func (r *AttemptRepository) CountSince(ctx context.Context, studentID, quizID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM quiz_attempts WHERE student_id = $1 AND quiz_id = $2 AND created_at >= $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, quizID, since); err != nil {
		return 0, fmt.Errorf("count recent attempts: %w", err)
	}
	return count, nil
}

// CountByEnrollment counts attempts recorded against an enrollment.
func (r *AttemptRepository) CountByEnrollment(ctx context.Context, enrollmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM quiz_attempts WHERE enrollment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("count enrollment attempts: %w", err)
	}
	return count, nil
}

// CountDistinctQuizzesSince counts distinct quizzes the student started
// attempts on after the given instant.
func (r *AttemptRepository) CountDistinctQuizzesSince(ctx context.Context, studentID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(DISTINCT quiz_id) FROM quiz_attempts WHERE student_id = $1 AND created_at >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, since); err != nil {
		return 0, fmt.Errorf("count distinct quizzes: %w", err)
	}
	return count, nil
}

// Create persists a new attempt. A unique violation on the in-progress
// index surfaces as ErrDuplicateInProgress.
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now
	if attempt.Status == "" {
		attempt.Status = models.AttemptStatusInProgress
	}
	if attempt.StartTimeUTC.IsZero() {
		attempt.StartTimeUTC = now
	}
	const query = `INSERT INTO quiz_attempts (id, quiz_id, student_id, enrollment_id, status, start_time_utc, end_time_utc, answers, score, created_at, updated_at)
        VALUES (:id, :quiz_id, :student_id, :enrollment_id, :status, :start_time_utc, :end_time_utc, :answers, :score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateInProgress
		}
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

// Complete finalizes an attempt with its answers and score. The status
// predicate keeps the update idempotent under concurrent submits.
func (r *AttemptRepository) Complete(ctx context.Context, id string, answers models.AnswerList, score float64, endTime time.Time) error {
	const query = `UPDATE quiz_attempts
        SET status = $2, answers = $3, score = $4, end_time_utc = $5, updated_at = $6
        WHERE id = $1 AND status = $7`
	res, err := r.db.ExecContext(ctx, query, id,
		models.AttemptStatusCompleted, answers, score, endTime, time.Now().UTC(),
		models.AttemptStatusInProgress)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete attempt result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAbandoned transitions stale in-progress attempts to abandoned. The
// state check is part of the update predicate so concurrent sweeps never
// double-transition a row. An empty quizID sweeps globally.
func (r *AttemptRepository) MarkAbandoned(ctx context.Context, olderThan time.Time, quizID string) (int64, error) {
	query := `UPDATE quiz_attempts SET status = $1, updated_at = $2 WHERE status = $3 AND created_at < $4`
	args := []interface{}{models.AttemptStatusAbandoned, time.Now().UTC(), models.AttemptStatusInProgress, olderThan}
	if quizID != "" {
		query += fmt.Sprintf(" AND quiz_id = $%d", len(args)+1)
		args = append(args, quizID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark attempts abandoned: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark abandoned result: %w", err)
	}
	return affected, nil
}

// ListStaleQuizIDs returns quizzes that still hold stale in-progress
// attempts, used by the reaper to fan sweeps out per quiz.
func (r *AttemptRepository) ListStaleQuizIDs(ctx context.Context, olderThan time.Time) ([]string, error) {
	const query = `SELECT DISTINCT quiz_id FROM quiz_attempts WHERE status = $1 AND created_at < $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.AttemptStatusInProgress, olderThan); err != nil {
		return nil, fmt.Errorf("list stale quiz ids: %w", err)
	}
	return ids, nil
}

// ListByQuiz returns all attempts for a quiz ordered by start time.
func (r *AttemptRepository) ListByQuiz(ctx context.Context, quizID string) ([]models.QuizAttempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM quiz_attempts WHERE quiz_id = $1 ORDER BY start_time_utc ASC`, attemptColumns)
	var attempts []models.QuizAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz attempts: %w", err)
	}
	return attempts, nil
}
