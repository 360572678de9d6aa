package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mantra/backend/internal/middleware"
	"mantra/backend/internal/service"
)

type BackupHandler struct {
	backupService *service.BackupService
}

func NewBackupHandler(backupService *service.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// Export serves the full dataset as a pretty-printed JSON attachment.
func (h *BackupHandler) Export(c *gin.Context) {
	userID := middleware.UserID(c)
	data, apiErr := h.backupService.Export(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	filename := service.ExportFilename(time.Now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.IndentedJSON(http.StatusOK, data)
}

func (h *BackupHandler) Import(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_body", "message": "failed to read request body"},
		})
		return
	}

	userID := middleware.UserID(c)
	data, apiErr := h.backupService.Import(c.Request.Context(), userID, raw)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"imported": gin.H{
			"counters": len(data.Counters),
			"sessions": len(data.Sessions),
		},
	})
}
