package api

import (
	"github.com/gin-gonic/gin"
	"github.com/pulsewatch/pulsewatch/internal/api/handlers"
	"github.com/pulsewatch/pulsewatch/internal/api/middleware"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
}

func NewServer(
	mode string,
	handler *handlers.Handler,
	collector *metrics.Collector,
	jwtSecret string,
	logger *zap.Logger,
) *Server {
	gin.SetMode(mode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))

	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthRequired(jwtSecret))
	{
		v1.POST("/monitors", handler.CreateMonitor)
		v1.GET("/monitors", handler.ListMonitors)
		v1.GET("/monitors/:id", handler.GetMonitor)
		v1.PUT("/monitors/:id", handler.UpdateMonitor)
		v1.DELETE("/monitors/:id", handler.DeleteMonitor)

		v1.POST("/monitors/:id/pause", handler.PauseMonitor)
		v1.POST("/monitors/:id/resume", handler.ResumeMonitor)

		v1.GET("/monitors/:id/status", handler.GetMonitorStatus)
		v1.GET("/monitors/:id/checks", handler.ListChecks)
		v1.GET("/monitors/:id/incidents", handler.ListIncidents)
		v1.GET("/monitors/:id/stats", handler.GetMonitorStats)

		v1.POST("/monitors/:id/notifications", handler.CreateNotification)
		v1.GET("/monitors/:id/notifications", handler.ListNotifications)

		v1.DELETE("/users/:id", handler.DeleteUser)

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/jobs", handler.ListJobs)
			admin.POST("/queue/obliterate", handler.ObliterateQueue)
		}
	}

	return &Server{router: router}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
