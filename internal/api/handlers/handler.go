package handlers

import (
	"github.com/pulsewatch/pulsewatch/internal/cleanup"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/monitors"
	"github.com/pulsewatch/pulsewatch/internal/scheduler"
	"github.com/pulsewatch/pulsewatch/internal/stats"
	"github.com/pulsewatch/pulsewatch/internal/storage/redis"
	"go.uber.org/zap"
)

type Handler struct {
	repo      *db.Repository
	monitors  *monitors.Service
	cleaner   *cleanup.Service
	scheduler *scheduler.Scheduler
	stats     *stats.Calculator
	cache     *redis.Client
	logger    *zap.Logger
}

func NewHandler(
	repo *db.Repository,
	monitorSvc *monitors.Service,
	cleaner *cleanup.Service,
	sched *scheduler.Scheduler,
	calc *stats.Calculator,
	cache *redis.Client,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		repo:      repo,
		monitors:  monitorSvc,
		cleaner:   cleaner,
		scheduler: sched,
		stats:     calc,
		cache:     cache,
		logger:    logger,
	}
}
