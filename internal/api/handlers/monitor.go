package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/monitors"
	"go.uber.org/zap"
)

type createMonitorRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Type        string `json:"type" binding:"required,oneof=http ping pagespeed"`
	URL         string `json:"url" binding:"required"`
	IntervalMs  int64  `json:"interval_ms"`
	IsActive    *bool  `json:"is_active"`
	TeamID      string `json:"team_id"`
}

func (h *Handler) CreateMonitor(c *gin.Context) {
	var req createMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor, err := h.monitors.Create(c.Request.Context(), monitors.CreateParams{
		UserID:      c.GetString("user_id"),
		TeamID:      req.TeamID,
		Name:        req.Name,
		Description: req.Description,
		Type:        db.MonitorType(req.Type),
		URL:         req.URL,
		IntervalMs:  req.IntervalMs,
		IsActive:    req.IsActive,
	})
	if err != nil {
		if isValidationErr(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to create monitor", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create monitor"})
		return
	}

	c.JSON(http.StatusCreated, monitor)
}

func (h *Handler) GetMonitor(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, monitor)
}

func (h *Handler) ListMonitors(c *gin.Context) {
	userID := c.GetString("user_id")

	var (
		list []*db.Monitor
		err  error
	)
	if c.GetString("role") == "admin" && c.Query("all") == "true" {
		list, err = h.repo.ListMonitors(c.Request.Context())
	} else {
		list, err = h.repo.GetMonitorsByUser(c.Request.Context(), userID)
	}
	if err != nil {
		h.logger.Error("Failed to list monitors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list monitors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"monitors": list, "count": len(list)})
}

type updateMonitorRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Type        *string `json:"type" binding:"omitempty,oneof=http ping pagespeed"`
	URL         *string `json:"url"`
	IntervalMs  *int64  `json:"interval_ms"`
	IsActive    *bool   `json:"is_active"`
}

func (h *Handler) UpdateMonitor(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	var req updateMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := monitors.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		IntervalMs:  req.IntervalMs,
		IsActive:    req.IsActive,
	}
	if req.Type != nil {
		t := db.MonitorType(*req.Type)
		params.Type = &t
	}

	updated, err := h.monitors.Update(c.Request.Context(), monitor.ID, params)
	if err != nil {
		if isValidationErr(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to update monitor", zap.Error(err), zap.String("monitor_id", monitor.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update monitor"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteMonitor(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	if err := h.monitors.Delete(c.Request.Context(), monitor.ID); err != nil {
		h.logger.Error("Failed to delete monitor", zap.Error(err), zap.String("monitor_id", monitor.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete monitor"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Monitor deleted"})
}

func (h *Handler) PauseMonitor(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	if err := h.monitors.Pause(c.Request.Context(), monitor.ID); err != nil {
		h.logger.Error("Failed to pause monitor", zap.Error(err), zap.String("monitor_id", monitor.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to pause monitor"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Monitor paused"})
}

func (h *Handler) ResumeMonitor(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	if err := h.monitors.Resume(c.Request.Context(), monitor.ID); err != nil {
		h.logger.Error("Failed to resume monitor", zap.Error(err), zap.String("monitor_id", monitor.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resume monitor"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Monitor resumed"})
}

// GetMonitorStatus serves the cached last-known state; it falls back to
// the persisted status when the cache has expired.
func (h *Handler) GetMonitorStatus(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	if status, err := h.cache.GetStatus(c.Request.Context(), monitor.ID); err == nil {
		c.JSON(http.StatusOK, gin.H{
			"monitor_id": monitor.ID,
			"up":         status.Up,
			"checked_at": status.CheckedAt,
			"source":     "cache",
		})
		return
	}

	resp := gin.H{"monitor_id": monitor.ID, "source": "database"}
	if monitor.Status != nil {
		resp["up"] = *monitor.Status
	} else {
		resp["up"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

// ownedMonitor loads the monitor from the path param and enforces that
// the caller owns it. Admins may access any monitor.
func (h *Handler) ownedMonitor(c *gin.Context) (*db.Monitor, bool) {
	monitor, err := h.repo.GetMonitor(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrMonitorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
			return nil, false
		}
		h.logger.Error("Failed to fetch monitor", zap.Error(err), zap.String("monitor_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch monitor"})
		return nil, false
	}

	if monitor.UserID != c.GetString("user_id") && c.GetString("role") != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, false
	}
	return monitor, true
}

func isValidationErr(err error) bool {
	return errors.Is(err, monitors.ErrInvalidType) ||
		errors.Is(err, monitors.ErrInvalidInterval) ||
		errors.Is(err, monitors.ErrMissingURL)
}
