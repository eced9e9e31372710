package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	"github.com/noah-isme/quiz-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
)

type quizRepository interface {
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	List(ctx context.Context, filter models.QuizFilter) ([]models.Quiz, int, error)
	Create(ctx context.Context, quiz *models.Quiz) error
	UpdateStatus(ctx context.Context, id string, status models.QuizStatus) error
	UpdateSchedule(ctx context.Context, quiz *models.Quiz) error
}

// Decision is the outcome of a state-machine eligibility check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CreateQuizRequest describes quiz creation. Legacy-mode quizzes fix their
// start time at creation; deferred quizzes are created without one.
type CreateQuizRequest struct {
	Title           string `json:"title" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	SchedulingMode  string `json:"scheduling_mode" validate:"omitempty,oneof=legacy deferred"`
	LocalStartTime  string `json:"local_start_time"`
	Timezone        string `json:"timezone"`
}

// ScheduleQuizRequest sets or replaces a quiz's start time through the
// scheduling flow.
type ScheduleQuizRequest struct {
	LocalStartTime string `json:"local_start_time" validate:"required"`
	Timezone       string `json:"timezone" validate:"required"`
}

// SchedulingService is the quiz lifecycle state machine: it owns publish,
// reschedule and enroll eligibility plus start-time validation. Store
// failures here fail closed: publishing or rescheduling never proceeds on an
// unreachable store.
type SchedulingService struct {
	quizzes   quizRepository
	tz        *TimezoneService
	cfg       config.SchedulingConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchedulingService constructs SchedulingService.
func NewSchedulingService(quizzes quizRepository, tz *TimezoneService, cfg config.SchedulingConfig, validate *validator.Validate, logger *zap.Logger) *SchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingService{quizzes: quizzes, tz: tz, cfg: cfg, validator: validate, logger: logger}
}

// CanPublish reports whether the quiz may transition to published at "now".
func (s *SchedulingService) CanPublish(quiz *models.Quiz, now time.Time) Decision {
	switch quiz.Status {
	case models.QuizStatusPublished:
		return deny("quiz is already published")
	case models.QuizStatusCompleted, models.QuizStatusArchived:
		return deny("quiz lifecycle is finished")
	}

	effective := EffectiveStartTime(quiz)
	if effective == nil {
		if quiz.SchedulingMode == models.SchedulingModeDeferred {
			return deny("deferred quiz has no start time yet")
		}
		return deny("quiz has no resolvable start time")
	}

	if effective.Before(now.Add(s.minStartBuffer())) {
		return deny(fmt.Sprintf("start time must be at least %d minutes in the future",
			int(s.minStartBuffer()/time.Minute)))
	}

	return allow()
}

// CanReschedule reports whether the quiz's start time may be changed. Legacy
// quizzes are immutable: they predate the scheduling flow and must not
// silently change semantics.
func (s *SchedulingService) CanReschedule(quiz *models.Quiz, now time.Time) Decision {
	if quiz.SchedulingMode == models.SchedulingModeLegacy {
		return deny("legacy quizzes cannot be rescheduled")
	}
	switch quiz.Status {
	case models.QuizStatusCompleted, models.QuizStatusArchived:
		return deny("quiz lifecycle is finished")
	}
	if effective := EffectiveStartTime(quiz); effective != nil && !effective.After(now) {
		return deny("quiz has already started")
	}
	return allow()
}

// CanEnroll reports whether students may still be granted access. Deferred
// quizzes are enrollable as soon as they are published, even before a start
// time is chosen; timed quizzes are enrollable until the window ends.
func (s *SchedulingService) CanEnroll(quiz *models.Quiz, now time.Time) Decision {
	if quiz.Status != models.QuizStatusPublished {
		return deny("quiz is not published")
	}

	effective := EffectiveStartTime(quiz)
	if effective == nil {
		if quiz.SchedulingMode == models.SchedulingModeDeferred {
			return allow()
		}
		return deny("quiz has no resolvable start time")
	}

	end := effective.Add(quiz.Duration())
	if !now.Before(end) {
		return deny("quiz window has ended")
	}
	return allow()
}

// ValidateProposedStartTime enforces the future buffer and the sanity upper
// bound on a proposed start instant.
func (s *SchedulingService) ValidateProposedStartTime(proposed, now time.Time) error {
	if proposed.Before(now.Add(s.minStartBuffer())) {
		return appErrors.Clone(appErrors.ErrNotSchedulable,
			fmt.Sprintf("start time must be at least %d minutes in the future", int(s.minStartBuffer()/time.Minute)))
	}
	if proposed.After(now.Add(s.maxFutureWindow())) {
		return appErrors.Clone(appErrors.ErrNotSchedulable,
			fmt.Sprintf("start time cannot be more than %d days in the future", int(s.maxFutureWindow()/(24*time.Hour))))
	}
	return nil
}

// CreateQuiz registers a draft quiz for an educator.
func (s *SchedulingService) CreateQuiz(ctx context.Context, req CreateQuizRequest, educatorID string) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}

	mode := models.SchedulingMode(req.SchedulingMode)
	if mode == "" {
		mode = models.SchedulingModeDeferred
	}

	zone := req.Timezone
	if zone == "" {
		zone = s.cfg.DefaultTimezone
	}

	quiz := &models.Quiz{
		EducatorID:        educatorID,
		Title:             req.Title,
		Status:            models.QuizStatusDraft,
		SchedulingMode:    mode,
		AuthoringTimezone: zone,
		DurationMinutes:   req.DurationMinutes,
	}

	if mode == models.SchedulingModeLegacy {
		if req.LocalStartTime == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "legacy quizzes require a start time at creation")
		}
		if !s.tz.IsValidTimezone(zone) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTimezone, fmt.Sprintf("timezone %q is not recognized", zone))
		}
		start, err := s.tz.ParseLocalDateTime(req.LocalStartTime, zone)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		if err := s.ValidateProposedStartTime(start, now); err != nil {
			return nil, err
		}
		configuredAt := now
		quiz.StartTimeUTC = &start
		quiz.TimeConfiguration = &models.TimeConfiguration{
			StartTime:       &start,
			Timezone:        zone,
			DurationMinutes: req.DurationMinutes,
			ConfiguredAt:    &configuredAt,
			ConfiguredBy:    educatorID,
			IsLegacy:        true,
		}
	}

	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, storeUnavailable(err, "failed to create quiz")
	}
	return quiz, nil
}

// GetQuiz loads a quiz by ID.
func (s *SchedulingService) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	quiz, err := s.quizzes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, storeUnavailable(err, "failed to load quiz")
	}
	return quiz, nil
}

// ListQuizzes returns quizzes with pagination metadata.
func (s *SchedulingService) ListQuizzes(ctx context.Context, filter models.QuizFilter) ([]models.Quiz, *models.Pagination, error) {
	quizzes, total, err := s.quizzes.List(ctx, filter)
	if err != nil {
		return nil, nil, storeUnavailable(err, "failed to list quizzes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return quizzes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Publish transitions a quiz to published once it passes the state machine.
func (s *SchedulingService) Publish(ctx context.Context, id, actorID string) (*models.Quiz, error) {
	quiz, err := s.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if d := s.CanPublish(quiz, now); !d.Allowed {
		if quiz.Status == models.QuizStatusPublished {
			return nil, appErrors.Clone(appErrors.ErrAlreadyPublished, d.Reason)
		}
		return nil, appErrors.Clone(appErrors.ErrNotSchedulable, d.Reason)
	}

	if err := s.quizzes.UpdateStatus(ctx, quiz.ID, models.QuizStatusPublished); err != nil {
		return nil, storeUnavailable(err, "failed to publish quiz")
	}
	quiz.Status = models.QuizStatusPublished

	s.logger.Info("quiz published",
		zap.String("quiz_id", quiz.ID),
		zap.String("actor", actorID))
	return quiz, nil
}

// Schedule sets or replaces the quiz start time through the scheduling flow,
// recording prior values in the time configuration for audit.
func (s *SchedulingService) Schedule(ctx context.Context, id string, req ScheduleQuizRequest, actorID string) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	quiz, err := s.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if d := s.CanReschedule(quiz, now); !d.Allowed {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, d.Reason)
	}

	if !s.tz.IsValidTimezone(req.Timezone) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTimezone, fmt.Sprintf("timezone %q is not recognized", req.Timezone))
	}
	start, err := s.tz.ParseLocalDateTime(req.LocalStartTime, req.Timezone)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateProposedStartTime(start, now); err != nil {
		return nil, err
	}

	configuredAt := now
	tc := &models.TimeConfiguration{
		StartTime:       &start,
		Timezone:        req.Timezone,
		DurationMinutes: quiz.DurationMinutes,
		ConfiguredAt:    &configuredAt,
		ConfiguredBy:    actorID,
	}
	if prev := EffectiveStartTime(quiz); prev != nil {
		rescheduledAt := now
		tc.PreviousStartTime = prev
		tc.PreviousTimezone = quiz.AuthoringTimezone
		tc.RescheduledAt = &rescheduledAt
	}

	quiz.SchedulingMode = models.SchedulingModeScheduled
	quiz.StartTimeUTC = &start
	quiz.AuthoringTimezone = req.Timezone
	quiz.TimeConfiguration = tc

	if err := s.quizzes.UpdateSchedule(ctx, quiz); err != nil {
		return nil, storeUnavailable(err, "failed to persist quiz schedule")
	}

	s.logger.Info("quiz scheduled",
		zap.String("quiz_id", quiz.ID),
		zap.Time("start_time_utc", start),
		zap.String("timezone", req.Timezone),
		zap.String("actor", actorID))
	return quiz, nil
}

func (s *SchedulingService) minStartBuffer() time.Duration {
	if s.cfg.MinStartBuffer <= 0 {
		return 5 * time.Minute
	}
	return s.cfg.MinStartBuffer
}

func (s *SchedulingService) maxFutureWindow() time.Duration {
	if s.cfg.MaxFutureWindow <= 0 {
		return 365 * 24 * time.Hour
	}
	return s.cfg.MaxFutureWindow
}

// storeUnavailable converts a raw persistence error into the typed kind that
// drives the fail-open/fail-closed policies.
func storeUnavailable(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
}
