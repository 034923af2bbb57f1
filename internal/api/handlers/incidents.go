package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) ListIncidents(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	incidents, err := h.repo.GetIncidentsByMonitor(c.Request.Context(), monitor.ID, limit)
	if err != nil {
		h.logger.Error("Failed to list incidents", zap.Error(err), zap.String("monitor_id", monitor.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list incidents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"incidents": incidents, "count": len(incidents)})
}
