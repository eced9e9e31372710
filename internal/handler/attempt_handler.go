package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	"github.com/noah-isme/quiz-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
	"github.com/noah-isme/quiz-scheduler-api/pkg/response"
)

// AttemptFlow is the slice of the attempt service the handler needs.
type AttemptFlow interface {
	Availability(ctx context.Context, quizID, studentID string, at time.Time) (models.Availability, error)
	Start(ctx context.Context, studentID, quizID string) (*models.QuizAttempt, error)
	Submit(ctx context.Context, studentID, quizID, attemptID string, answers []service.AnswerSubmission) (*models.QuizAttempt, error)
	DetectAbuse(ctx context.Context, studentID string) bool
}

// AttemptHandler exposes the student attempt flow: availability, start and
// submit.
type AttemptHandler struct {
	attempts  AttemptFlow
	timezones *service.TimezoneService
}

// NewAttemptHandler constructs AttemptHandler.
func NewAttemptHandler(attempts AttemptFlow, timezones *service.TimezoneService) *AttemptHandler {
	return &AttemptHandler{attempts: attempts, timezones: timezones}
}

// SubmitAttemptRequest carries the answers of a submission.
type SubmitAttemptRequest struct {
	Answers []service.AnswerSubmission `json:"answers"`
}

// Availability godoc
// @Summary Check quiz availability
// @Tags Attempts
// @Produce json
// @Param id path string true "Quiz ID"
// @Param at query string false "Local date-time to evaluate, defaults to now"
// @Param tz query string false "Timezone for the at parameter" default(UTC)
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id}/availability [get]
func (h *AttemptHandler) Availability(c *gin.Context) {
	now := time.Now().UTC()
	at, substituted := h.timezones.ParseLocalDateTimeOrNow(c.Query("at"), c.DefaultQuery("tz", "UTC"), now)

	availability, err := h.attempts.Availability(c.Request.Context(), c.Param("id"), callerID(c), at)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if substituted && c.Query("at") != "" {
		meta = map[string]interface{}{"evaluated_at": at, "at_substituted": true}
	}
	response.JSON(c, http.StatusOK, availability, nil, meta)
}

// Start godoc
// @Summary Start a quiz attempt
// @Tags Attempts
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 201 {object} response.Envelope
// @Router /quizzes/{id}/attempts [post]
func (h *AttemptHandler) Start(c *gin.Context) {
	studentID := callerID(c)
	attempt, err := h.attempts.Start(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if h.attempts.DetectAbuse(c.Request.Context(), studentID) {
		meta = map[string]interface{}{"flagged_for_review": true}
	}
	response.JSON(c, http.StatusCreated, attempt, nil, meta)
}

// Submit godoc
// @Summary Submit a quiz attempt
// @Tags Attempts
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param attemptId path string true "Attempt ID"
// @Param payload body SubmitAttemptRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id}/attempts/{attemptId}/submit [post]
func (h *AttemptHandler) Submit(c *gin.Context) {
	var req SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	attempt, err := h.attempts.Submit(c.Request.Context(), callerID(c), c.Param("id"), c.Param("attemptId"), req.Answers)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt, nil)
}
