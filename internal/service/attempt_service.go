package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	"github.com/noah-isme/quiz-scheduler-api/internal/repository"
	"github.com/noah-isme/quiz-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
)

type attemptRepository interface {
	FindByID(ctx context.Context, id string) (*models.QuizAttempt, error)
	FindInProgress(ctx context.Context, studentID, quizID string) (*models.QuizAttempt, error)
	CountByEnrollment(ctx context.Context, enrollmentID string) (int, error)
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	Complete(ctx context.Context, id string, answers models.AnswerList, score float64, endTime time.Time) error
}

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndQuiz(ctx context.Context, studentID, quizID string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type quizReader interface {
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
}

type abuseCounters interface {
	RecordStart(ctx context.Context, studentID, quizID string, now time.Time)
	StartCount(ctx context.Context, studentID, quizID string, now time.Time) (int, error)
	DistinctQuizCount(ctx context.Context, studentID string, now time.Time) (int, error)
}

// StartDecision is the validator's answer to a start request.
type StartDecision struct {
	Allowed bool `json:"allowed"`
	// Reason is set when the start was denied.
	Reason string `json:"reason,omitempty"`
	// ExistingAttemptID is set when an open attempt should be resumed
	// instead of creating a new one.
	ExistingAttemptID string `json:"existing_attempt_id,omitempty"`
}

// SubmitDecision is the validator's answer to a submit request.
type SubmitDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	// Flagged marks submissions accepted past the audit threshold.
	Flagged bool `json:"flagged,omitempty"`
}

// AnswerSubmission is one answer in a submit payload.
type AnswerSubmission struct {
	QuestionID string `json:"question_id" validate:"required"`
	Selected   string `json:"selected"`
	Correct    bool   `json:"correct"`
}

// AttemptService validates and orchestrates quiz attempts.
//
// AvailabilityFirstPolicy: when the underlying store is unreachable during a
// validation read, the validators answer allowed=true instead of blocking
// the student. Classroom windows are short; losing strict abuse prevention
// for the duration of a store outage costs less than locking a class out of
// its quiz. The policy is an explicit, named contract, not a catch-all.
type AttemptService struct {
	attempts    attemptRepository
	enrollments enrollmentRepository
	quizzes     quizReader
	guard       abuseCounters
	cfg         config.AntiAbuseConfig
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewAttemptService constructs AttemptService.
func NewAttemptService(attempts attemptRepository, enrollments enrollmentRepository, quizzes quizReader, guard abuseCounters, cfg config.AntiAbuseConfig, logger *zap.Logger, metrics *MetricsService) *AttemptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptService{
		attempts:    attempts,
		enrollments: enrollments,
		quizzes:     quizzes,
		guard:       guard,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
	}
}

// failOpenStart applies AvailabilityFirstPolicy to a failed start check.
func (s *AttemptService) failOpenStart(operation string, err error) StartDecision {
	s.logger.Warn("validation unavailable, failing open",
		zap.String("operation", operation),
		zap.Error(err))
	s.metrics.RecordFailOpen(operation)
	return StartDecision{Allowed: true}
}

// failOpenSubmit applies AvailabilityFirstPolicy to a failed submit check.
func (s *AttemptService) failOpenSubmit(operation string, err error) SubmitDecision {
	s.logger.Warn("validation unavailable, failing open",
		zap.String("operation", operation),
		zap.Error(err))
	s.metrics.RecordFailOpen(operation)
	return SubmitDecision{Allowed: true}
}

// ValidateStart decides whether a start request may proceed. It is
// idempotent for retried requests: an existing in-progress attempt is
// resumed, never duplicated.
func (s *AttemptService) ValidateStart(ctx context.Context, studentID, quizID, enrollmentID string) (StartDecision, error) {
	now := time.Now().UTC()

	if enrollmentID != "" {
		enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return StartDecision{Reason: "enrollment not found"}, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			return s.failOpenStart("start.enrollment", err), nil
		}
		if enrollment.Status == models.EnrollmentStatusCompleted {
			return StartDecision{Reason: "enrollment already completed"}, appErrors.ErrAlreadyCompleted
		}
	}

	existing, err := s.attempts.FindInProgress(ctx, studentID, quizID)
	if err != nil {
		return s.failOpenStart("start.resume", err), nil
	}
	if existing != nil {
		return StartDecision{Allowed: true, ExistingAttemptID: existing.ID}, nil
	}

	recent, err := s.guard.StartCount(ctx, studentID, quizID, now)
	if err != nil {
		return s.failOpenStart("start.ratelimit", err), nil
	}
	if recent >= s.startRateLimit() {
		return StartDecision{Reason: "too many attempts started recently"}, appErrors.ErrTooManyAttempts
	}

	return StartDecision{Allowed: true}, nil
}

// Start runs the full student flow: availability, validation, creation.
// Duplicate creations racing past the validator collapse onto the storage
// unique index and resume the surviving attempt.
func (s *AttemptService) Start(ctx context.Context, studentID, quizID string) (*models.QuizAttempt, error) {
	quiz, err := s.quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, storeUnavailable(err, "failed to load quiz")
	}

	now := time.Now().UTC()

	enrollment, enrollmentErr := s.enrollments.FindByStudentAndQuiz(ctx, studentID, quizID)
	if enrollmentErr != nil {
		// AvailabilityFirstPolicy: assume a plain enrollment.
		s.logger.Warn("validation unavailable, failing open",
			zap.String("operation", "start.enrollment_lookup"),
			zap.Error(enrollmentErr))
		s.metrics.RecordFailOpen("start.enrollment_lookup")
		enrollment = nil
	}

	enrollmentID := ""
	isReassignment := false
	alreadyAttempted := false
	if enrollment != nil {
		enrollmentID = enrollment.ID
		isReassignment = enrollment.IsReassignment
		count, err := s.attempts.CountByEnrollment(ctx, enrollment.ID)
		if err != nil {
			s.metrics.RecordFailOpen("start.attempt_history")
			s.logger.Warn("validation unavailable, failing open",
				zap.String("operation", "start.attempt_history"),
				zap.Error(err))
		} else {
			alreadyAttempted = count > 0
		}
	}

	availability := ComputeAvailability(EffectiveStartTime(quiz), quiz.DurationMinutes, now, isReassignment, alreadyAttempted)
	if !availability.Available {
		s.metrics.RecordAttemptStart("unavailable")
		return nil, appErrors.New("QUIZ_NOT_AVAILABLE", http.StatusConflict, availability.Message)
	}

	decision, err := s.ValidateStart(ctx, studentID, quizID, enrollmentID)
	if err != nil {
		s.metrics.RecordAttemptStart("rejected")
		return nil, err
	}
	if decision.ExistingAttemptID != "" {
		s.metrics.RecordAttemptStart("resumed")
		return s.attemptByID(ctx, decision.ExistingAttemptID)
	}

	attempt := &models.QuizAttempt{
		QuizID:       quizID,
		StudentID:    studentID,
		EnrollmentID: enrollmentID,
		Status:       models.AttemptStatusInProgress,
		StartTimeUTC: now,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateInProgress) {
			existing, findErr := s.attempts.FindInProgress(ctx, studentID, quizID)
			if findErr == nil && existing != nil {
				s.metrics.RecordAttemptStart("resumed")
				return existing, nil
			}
		}
		return nil, storeUnavailable(err, "failed to create attempt")
	}

	s.guard.RecordStart(ctx, studentID, quizID, now)
	if enrollmentID != "" {
		if err := s.enrollments.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusInProgress); err != nil {
			s.logger.Warn("failed to mark enrollment in progress",
				zap.String("enrollment_id", enrollmentID),
				zap.Error(err))
		}
	}

	s.metrics.RecordAttemptStart("created")
	s.logger.Info("attempt started",
		zap.String("attempt_id", attempt.ID),
		zap.String("quiz_id", quizID),
		zap.String("student_id", studentID))
	return attempt, nil
}

// ValidateSubmit decides whether a submit request may proceed. Submissions
// open past the audit threshold are still allowed but flagged: stale
// submissions are accepted so genuine work is never lost.
func (s *AttemptService) ValidateSubmit(ctx context.Context, studentID, quizID, attemptID string) (SubmitDecision, error) {
	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SubmitDecision{Reason: "attempt not found"}, appErrors.ErrInvalidAttempt
		}
		return s.failOpenSubmit("submit.lookup", err), nil
	}

	if attempt.StudentID != studentID || attempt.QuizID != quizID {
		return SubmitDecision{Reason: "attempt does not belong to this student and quiz"}, appErrors.ErrInvalidAttempt
	}
	if attempt.Status == models.AttemptStatusCompleted {
		return SubmitDecision{Reason: "attempt was already submitted"}, appErrors.ErrAlreadySubmitted
	}

	decision := SubmitDecision{Allowed: true}
	if openFor := time.Now().UTC().Sub(attempt.StartTimeUTC); openFor > s.staleSubmitAfter() {
		decision.Flagged = true
		s.metrics.RecordStaleSubmission()
		s.logger.Warn("stale submission accepted for audit",
			zap.String("attempt_id", attemptID),
			zap.Duration("open_for", openFor))
	}
	return decision, nil
}

// Submit finalizes an attempt with the supplied answers, scoring them as
// the ratio of correct answers.
func (s *AttemptService) Submit(ctx context.Context, studentID, quizID, attemptID string, answers []AnswerSubmission) (*models.QuizAttempt, error) {
	if _, err := s.ValidateSubmit(ctx, studentID, quizID, attemptID); err != nil {
		s.metrics.RecordAttemptSubmit("rejected")
		return nil, err
	}

	recorded := make(models.AnswerList, 0, len(answers))
	correct := 0
	for _, answer := range answers {
		if answer.Correct {
			correct++
		}
		recorded = append(recorded, models.AttemptAnswer{
			QuestionID: answer.QuestionID,
			Selected:   answer.Selected,
			Correct:    answer.Correct,
		})
	}
	score := 0.0
	if len(answers) > 0 {
		score = float64(correct) / float64(len(answers))
	}

	endTime := time.Now().UTC()
	if err := s.attempts.Complete(ctx, attemptID, recorded, score, endTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A concurrent submit won the conditional update.
			s.metrics.RecordAttemptSubmit("rejected")
			return nil, appErrors.ErrAlreadySubmitted
		}
		return nil, storeUnavailable(err, "failed to finalize attempt")
	}

	attempt, err := s.attemptByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.EnrollmentID != "" {
		if err := s.enrollments.UpdateStatus(ctx, attempt.EnrollmentID, models.EnrollmentStatusCompleted); err != nil {
			s.logger.Warn("failed to mark enrollment completed",
				zap.String("enrollment_id", attempt.EnrollmentID),
				zap.Error(err))
		}
	}

	s.metrics.RecordAttemptSubmit("completed")
	s.logger.Info("attempt submitted",
		zap.String("attempt_id", attemptID),
		zap.Float64("score", score))
	return attempt, nil
}

// Availability reports whether a student can take a quiz at the given
// instant. Enrollment lookups fail open to a plain enrollment view so the
// answer degrades rather than disappears.
func (s *AttemptService) Availability(ctx context.Context, quizID, studentID string, at time.Time) (models.Availability, error) {
	quiz, err := s.quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Availability{}, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return models.Availability{}, storeUnavailable(err, "failed to load quiz")
	}

	isReassignment := false
	alreadyAttempted := false
	if studentID != "" {
		enrollment, err := s.enrollments.FindByStudentAndQuiz(ctx, studentID, quizID)
		if err != nil {
			s.logger.Warn("validation unavailable, failing open",
				zap.String("operation", "availability.enrollment"),
				zap.Error(err))
			s.metrics.RecordFailOpen("availability.enrollment")
		} else if enrollment != nil {
			isReassignment = enrollment.IsReassignment
			count, err := s.attempts.CountByEnrollment(ctx, enrollment.ID)
			if err != nil {
				s.metrics.RecordFailOpen("availability.attempt_history")
			} else {
				alreadyAttempted = count > 0
			}
		}
	}

	return ComputeAvailability(EffectiveStartTime(quiz), quiz.DurationMinutes, at.UTC(), isReassignment, alreadyAttempted), nil
}

// DetectAbuse flags a student who started attempts on more than the allowed
// number of distinct quizzes within the spree window. It is a signal only
// and never blocks by itself.
func (s *AttemptService) DetectAbuse(ctx context.Context, studentID string) bool {
	count, err := s.guard.DistinctQuizCount(ctx, studentID, time.Now().UTC())
	if err != nil {
		s.logger.Warn("abuse detection unavailable",
			zap.String("student_id", studentID),
			zap.Error(err))
		return false
	}
	if count > s.distinctQuizLimit() {
		s.metrics.RecordAbuseFlag()
		s.logger.Warn("suspicious attempt spree",
			zap.String("student_id", studentID),
			zap.Int("distinct_quizzes", count))
		return true
	}
	return false
}

func (s *AttemptService) attemptByID(ctx context.Context, id string) (*models.QuizAttempt, error) {
	attempt, err := s.attempts.FindByID(ctx, id)
	if err != nil {
		return nil, storeUnavailable(err, "failed to load attempt")
	}
	return attempt, nil
}

func (s *AttemptService) startRateLimit() int {
	if s.cfg.StartRateLimit <= 0 {
		return 3
	}
	return s.cfg.StartRateLimit
}

func (s *AttemptService) distinctQuizLimit() int {
	if s.cfg.DistinctQuizLimit <= 0 {
		return 3
	}
	return s.cfg.DistinctQuizLimit
}

func (s *AttemptService) staleSubmitAfter() time.Duration {
	if s.cfg.StaleSubmitAfter <= 0 {
		return 4 * time.Hour
	}
	return s.cfg.StaleSubmitAfter
}
