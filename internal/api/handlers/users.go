package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DeleteUser removes every monitor the user owns along with their job
// handles and dependent records. Partial failure is reported, not
// rolled back: the response lists which monitors were cleaned and
// which were not.
func (h *Handler) DeleteUser(c *gin.Context) {
	userID := c.Param("id")
	if userID != c.GetString("user_id") && c.GetString("role") != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	outcome, err := h.cleaner.CleanupUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("User cleanup failed", zap.Error(err), zap.String("user_id", userID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clean up user"})
		return
	}

	failed := make(map[string]string, len(outcome.Failed))
	for id, ferr := range outcome.Failed {
		failed[id] = ferr.Error()
	}

	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"user_id":   userID,
		"succeeded": outcome.Succeeded,
		"failed":    failed,
	})
}
