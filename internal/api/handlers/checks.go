package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"go.uber.org/zap"
)

// ListChecks serves the paginated check history for a monitor. Pages
// are zero-indexed; a page past the end returns an empty list with the
// real total so clients can render page counts.
func (h *Handler) ListChecks(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	page := 0
	if v := c.Query("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
			return
		}
		page = p
	}

	pageSize := db.DefaultPageSize
	if v := c.Query("page_size"); v != "" {
		ps, err := strconv.Atoi(v)
		if err != nil || ps < 1 || ps > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page_size"})
			return
		}
		pageSize = ps
	}

	var filter db.CheckFilter
	switch c.Query("status") {
	case "":
	case "up":
		up := true
		filter.Status = &up
	case "down":
		down := false
		filter.Status = &down
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be up or down"})
		return
	}

	sortOrder := c.DefaultQuery("sort", "desc")
	if sortOrder != "asc" && sortOrder != "desc" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be asc or desc"})
		return
	}

	checks, total, err := h.repo.ListChecks(c.Request.Context(), monitor.ID, filter, sortOrder, page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list checks", zap.Error(err), zap.String("monitor_id", monitor.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list checks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checks":    checks,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetMonitorStats aggregates uptime over a trailing window, 24h by
// default.
func (h *Handler) GetMonitorStats(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	hours := 24
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 24*90 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hours"})
			return
		}
		hours = n
	}

	summary, err := h.stats.Summarize(c.Request.Context(), monitor.ID, time.Duration(hours)*time.Hour)
	if err != nil {
		h.logger.Error("Failed to compute stats", zap.Error(err), zap.String("monitor_id", monitor.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
