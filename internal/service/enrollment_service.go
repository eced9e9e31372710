package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
)

type enrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndQuiz(ctx context.Context, studentID, quizID string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

// EnrollStudentRequest grants a student access to a quiz.
type EnrollStudentRequest struct {
	QuizID    string `json:"quiz_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

// EnrollmentService manages which students may take which quizzes,
// including reassignments that grant a fresh attempt outside the window.
type EnrollmentService struct {
	enrollments enrollmentStore
	quizzes     quizReader
	scheduling  *SchedulingService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentStore, quizzes quizReader, scheduling *SchedulingService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		quizzes:     quizzes,
		scheduling:  scheduling,
		validator:   validate,
		logger:      logger,
	}
}

// Enroll grants a student access to a quiz while the state machine allows
// it. Enrolling the same student twice is a conflict; use Reassign to grant
// a fresh attempt.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	quiz, err := s.scheduling.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}
	if d := s.scheduling.CanEnroll(quiz, time.Now().UTC()); !d.Allowed {
		return nil, appErrors.Clone(appErrors.ErrConflict, d.Reason)
	}

	existing, err := s.enrollments.FindByStudentAndQuiz(ctx, req.StudentID, req.QuizID)
	if err != nil {
		return nil, storeUnavailable(err, "failed to check existing enrollment")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this quiz")
	}

	enrollment := &models.Enrollment{
		QuizID:    req.QuizID,
		StudentID: req.StudentID,
		Status:    models.EnrollmentStatusEnrolled,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, storeUnavailable(err, "failed to create enrollment")
	}

	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("quiz_id", req.QuizID),
		zap.String("student_id", req.StudentID))
	return enrollment, nil
}

// Reassign grants a student a fresh enrollment for a quiz they already had.
// Reassigned enrollments are exempt from the quiz window until the fresh
// attempt is used. The quiz only needs to exist; reassignment is precisely
// for quizzes whose window has passed.
func (s *EnrollmentService) Reassign(ctx context.Context, quizID, studentID, actorID string) (*models.Enrollment, error) {
	if _, err := s.scheduling.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}

	existing, err := s.enrollments.FindByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil {
		return nil, storeUnavailable(err, "failed to check existing enrollment")
	}
	if existing == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student was never enrolled in this quiz")
	}
	if existing.IsReassignment && existing.Status == models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an unused reassignment")
	}

	// Retire the prior enrollment so availability resolves to the fresh one.
	if existing.Status != models.EnrollmentStatusCompleted {
		if err := s.enrollments.UpdateStatus(ctx, existing.ID, models.EnrollmentStatusAbandoned); err != nil {
			return nil, storeUnavailable(err, "failed to retire prior enrollment")
		}
	}

	enrollment := &models.Enrollment{
		QuizID:         quizID,
		StudentID:      studentID,
		Status:         models.EnrollmentStatusEnrolled,
		IsReassignment: true,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, storeUnavailable(err, "failed to create reassignment")
	}

	s.logger.Info("quiz reassigned",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("quiz_id", quizID),
		zap.String("student_id", studentID),
		zap.String("actor", actorID))
	return enrollment, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, storeUnavailable(err, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
