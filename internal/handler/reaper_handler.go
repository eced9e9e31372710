package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/quiz-scheduler-api/internal/service"
	"github.com/noah-isme/quiz-scheduler-api/pkg/response"
)

// ReaperHandler exposes the manual sweep trigger for operators.
type ReaperHandler struct {
	reaper     *service.ReaperService
	staleAfter time.Duration
}

// NewReaperHandler constructs ReaperHandler.
func NewReaperHandler(reaper *service.ReaperService, staleAfter time.Duration) *ReaperHandler {
	return &ReaperHandler{reaper: reaper, staleAfter: staleAfter}
}

// Sweep godoc
// @Summary Sweep abandoned attempts now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/reaper/sweep [post]
func (h *ReaperHandler) Sweep(c *gin.Context) {
	olderThan := time.Now().UTC().Add(-h.staleAfter)
	reaped, err := h.reaper.SweepAbandonedAttempts(c.Request.Context(), olderThan)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"reaped": reaped}, nil)
}
