package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mantra/backend/internal/middleware"
	"mantra/backend/internal/service"
)

type CounterHandler struct {
	counterService *service.CounterService
}

func NewCounterHandler(counterService *service.CounterService) *CounterHandler {
	return &CounterHandler{counterService: counterService}
}

func (h *CounterHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	counters, apiErr := h.counterService.List(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counters": counters})
}

func (h *CounterHandler) Create(c *gin.Context) {
	var req service.CounterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_json", "message": "invalid request body"},
		})
		return
	}

	userID := middleware.UserID(c)
	counter, apiErr := h.counterService.Create(c.Request.Context(), userID, req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"counter": counter})
}

func (h *CounterHandler) Update(c *gin.Context) {
	var req service.CounterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_json", "message": "invalid request body"},
		})
		return
	}

	userID := middleware.UserID(c)
	counter, apiErr := h.counterService.Update(c.Request.Context(), userID, c.Param("id"), req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counter": counter})
}

func (h *CounterHandler) Delete(c *gin.Context) {
	userID := middleware.UserID(c)
	if apiErr := h.counterService.Delete(c.Request.Context(), userID, c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CounterHandler) Stats(c *gin.Context) {
	userID := middleware.UserID(c)
	stats, apiErr := h.counterService.Stats(c.Request.Context(), userID, c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *CounterHandler) History(c *gin.Context) {
	userID := middleware.UserID(c)

	limit := 0
	if rawLimit := c.Query("limit"); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil {
			limit = parsed
		}
	}

	sessions, apiErr := h.counterService.History(c.Request.Context(), userID, c.Query("counterId"), limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *CounterHandler) DeleteSession(c *gin.Context) {
	userID := middleware.UserID(c)
	if apiErr := h.counterService.DeleteSession(c.Request.Context(), userID, c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CounterHandler) ClearHistory(c *gin.Context) {
	userID := middleware.UserID(c)
	if apiErr := h.counterService.ClearHistory(c.Request.Context(), userID, c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}
