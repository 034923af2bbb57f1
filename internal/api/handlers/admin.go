package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ObliterateQueue stops every job handle and purges pending ticks.
// Monitors stay in the database; a reconcile pass rebuilds the handles
// for active monitors.
func (h *Handler) ObliterateQueue(c *gin.Context) {
	if err := h.scheduler.Obliterate(c.Request.Context()); err != nil {
		h.logger.Error("Failed to obliterate queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to obliterate queue"})
		return
	}

	h.logger.Warn("Tick queue obliterated", zap.String("requested_by", c.GetString("user_id")))
	c.JSON(http.StatusOK, gin.H{"message": "Queue obliterated"})
}

// ListJobs exposes the scheduler's in-memory handles for operational
// inspection.
func (h *Handler) ListJobs(c *gin.Context) {
	handles := h.scheduler.Handles()

	jobs := make([]gin.H, 0, len(handles))
	for _, handle := range handles {
		jobs = append(jobs, gin.H{
			"monitor_id": handle.MonitorID,
			"interval":   handle.Interval.String(),
			"state":      string(handle.State),
		})
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}
