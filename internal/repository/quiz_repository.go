package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
)

// QuizRepository handles persistence of quizzes.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

const quizColumns = `id, educator_id, title, status, scheduling_mode, start_time_utc, authoring_timezone, duration_minutes, time_configuration, created_at, updated_at`

// FindByID returns a quiz by its ID.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	query := fmt.Sprintf(`SELECT %s FROM quizzes WHERE id = $1`, quizColumns)
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// List returns quizzes filtered by the provided criteria.
func (r *QuizRepository) List(ctx context.Context, filter models.QuizFilter) ([]models.Quiz, int, error) {
	var conditions []string
	var args []interface{}

	if filter.EducatorID != "" {
		conditions = append(conditions, fmt.Sprintf("educator_id = $%d", len(args)+1))
		args = append(args, filter.EducatorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM quizzes%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		quizColumns, clause, size, offset)

	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM quizzes" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}
	return quizzes, total, nil
}

// Create persists a new quiz record.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.UpdatedAt = now
	if quiz.Status == "" {
		quiz.Status = models.QuizStatusDraft
	}
	const query = `INSERT INTO quizzes (id, educator_id, title, status, scheduling_mode, start_time_utc, authoring_timezone, duration_minutes, time_configuration, created_at, updated_at)
        VALUES (:id, :educator_id, :title, :status, :scheduling_mode, :start_time_utc, :authoring_timezone, :duration_minutes, :time_configuration, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

// UpdateStatus transitions the quiz lifecycle status.
func (r *QuizRepository) UpdateStatus(ctx context.Context, id string, status models.QuizStatus) error {
	const query = `UPDATE quizzes SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update quiz status: %w", err)
	}
	return nil
}

// UpdateSchedule persists a new effective start time along with the audit
// metadata recorded in time_configuration.
func (r *QuizRepository) UpdateSchedule(ctx context.Context, quiz *models.Quiz) error {
	quiz.UpdatedAt = time.Now().UTC()
	const query = `UPDATE quizzes
        SET scheduling_mode = :scheduling_mode,
            start_time_utc = :start_time_utc,
            authoring_timezone = :authoring_timezone,
            duration_minutes = :duration_minutes,
            time_configuration = :time_configuration,
            updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("update quiz schedule: %w", err)
	}
	return nil
}
