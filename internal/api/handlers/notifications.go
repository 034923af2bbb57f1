package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"go.uber.org/zap"
)

type createNotificationRequest struct {
	Type    string `json:"type" binding:"required,oneof=email webhook"`
	Address string `json:"address" binding:"required"`
}

func (h *Handler) CreateNotification(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notification := &db.Notification{
		ID:        uuid.New().String(),
		MonitorID: monitor.ID,
		Type:      req.Type,
		Address:   req.Address,
		CreatedAt: time.Now(),
	}
	if err := h.repo.CreateNotification(c.Request.Context(), notification); err != nil {
		h.logger.Error("Failed to create notification", zap.Error(err), zap.String("monitor_id", monitor.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification"})
		return
	}

	c.JSON(http.StatusCreated, notification)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	monitor, ok := h.ownedMonitor(c)
	if !ok {
		return
	}

	notifications, err := h.repo.GetNotificationsByMonitor(c.Request.Context(), monitor.ID)
	if err != nil {
		h.logger.Error("Failed to list notifications", zap.Error(err), zap.String("monitor_id", monitor.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "count": len(notifications)})
}
