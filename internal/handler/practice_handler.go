package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mantra/backend/internal/middleware"
	"mantra/backend/internal/service"
)

type PracticeHandler struct {
	practiceService *service.PracticeService
}

type selectRequest struct {
	CounterID string `json:"counterId"`
}

func NewPracticeHandler(practiceService *service.PracticeService) *PracticeHandler {
	return &PracticeHandler{practiceService: practiceService}
}

func (h *PracticeHandler) State(c *gin.Context) {
	userID := middleware.UserID(c)
	state, apiErr := h.practiceService.State(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PracticeHandler) Select(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_json", "message": "invalid request body"},
		})
		return
	}
	if req.CounterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_counter_id", "message": "counterId is required"},
		})
		return
	}

	userID := middleware.UserID(c)
	state, apiErr := h.practiceService.Select(c.Request.Context(), userID, req.CounterID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PracticeHandler) Tap(c *gin.Context) {
	userID := middleware.UserID(c)
	state, apiErr := h.practiceService.Tap(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PracticeHandler) Decrement(c *gin.Context) {
	userID := middleware.UserID(c)
	state, apiErr := h.practiceService.Decrement(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PracticeHandler) Finish(c *gin.Context) {
	userID := middleware.UserID(c)
	state, apiErr := h.practiceService.Finish(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PracticeHandler) Reset(c *gin.Context) {
	userID := middleware.UserID(c)
	state, apiErr := h.practiceService.Reset(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PracticeHandler) ResetCounter(c *gin.Context) {
	userID := middleware.UserID(c)
	state, apiErr := h.practiceService.ResetCounter(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PracticeHandler) Tick(c *gin.Context) {
	userID := middleware.UserID(c)
	state, apiErr := h.practiceService.Tick(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
