package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	"github.com/noah-isme/quiz-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
	"github.com/noah-isme/quiz-scheduler-api/pkg/response"
)

// QuizHandler exposes quiz lifecycle and scheduling endpoints.
type QuizHandler struct {
	scheduling *service.SchedulingService
	exports    *service.ExportService
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(scheduling *service.SchedulingService, exports *service.ExportService) *QuizHandler {
	return &QuizHandler{scheduling: scheduling, exports: exports}
}

// List godoc
// @Summary List quizzes
// @Tags Quizzes
// @Produce json
// @Param educatorId query string false "Filter by educator"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /quizzes [get]
func (h *QuizHandler) List(c *gin.Context) {
	var filter models.QuizFilter
	filter.EducatorID = c.Query("educatorId")
	filter.Status = models.QuizStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	quizzes, pagination, err := h.scheduling.ListQuizzes(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quizzes, pagination)
}

// Get godoc
// @Summary Get quiz
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	quiz, err := h.scheduling.GetQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// Create godoc
// @Summary Create quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param payload body service.CreateQuizRequest true "Quiz payload"
// @Success 201 {object} response.Envelope
// @Router /quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
	var req service.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quiz, err := h.scheduling.CreateQuiz(c.Request.Context(), req, callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// Publish godoc
// @Summary Publish quiz
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id}/publish [post]
func (h *QuizHandler) Publish(c *gin.Context) {
	quiz, err := h.scheduling.Publish(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// Schedule godoc
// @Summary Set or replace quiz start time
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body service.ScheduleQuizRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id}/schedule [put]
func (h *QuizHandler) Schedule(c *gin.Context) {
	var req service.ScheduleQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quiz, err := h.scheduling.Schedule(c.Request.Context(), c.Param("id"), req, callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// Export godoc
// @Summary Export attempt report
// @Tags Quizzes
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Quiz ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /quizzes/{id}/export [get]
func (h *QuizHandler) Export(c *gin.Context) {
	result, err := h.exports.ExportAttempts(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
