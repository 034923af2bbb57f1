package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pulsewatch/pulsewatch/internal/checks"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/incidents"
	"github.com/pulsewatch/pulsewatch/internal/logging"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/queue"
	"github.com/pulsewatch/pulsewatch/internal/scheduler"
	"github.com/pulsewatch/pulsewatch/internal/storage/redis"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	conn, err := db.NewConnection(cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	repo := db.NewRepository(conn)

	cache := redis.NewClient(cfg.Redis.URL)
	defer cache.Close()

	tickQueue := queue.NewRedisQueue(cache.Client)
	collector := metrics.NewCollector()

	runners := map[db.MonitorType]checks.Runner{
		db.MonitorTypeHTTP: checks.NewHTTPChecker(),
		db.MonitorTypePing: checks.NewPingChecker(),
		db.MonitorTypePagespeed: checks.NewPagespeedChecker(
			cfg.Pagespeed.APIURL, cfg.Pagespeed.APIKey, cfg.Pagespeed.RequestsPerMin),
	}

	notifiers := map[string]notify.Notifier{
		"webhook": notify.NewWebhookNotifier(cfg.Notify.Timeout),
	}
	emitter := incidents.NewService(repo, notifiers, logger, collector, cfg.Notify.MaxRetries)

	// The API process owns the job registry and pushes ticks; this
	// process only drains the shared queue. Paused and deleted
	// monitors are filtered by the per-tick IsActive check.
	pool := scheduler.NewPool(scheduler.PoolConfig{
		WorkerCount:      cfg.Scheduler.WorkerCount,
		QueueSize:        cfg.Scheduler.QueueSize,
		CheckTimeout:     cfg.Scheduler.CheckTimeout,
		PagespeedTimeout: cfg.Pagespeed.Timeout,
		DrainTimeout:     cfg.Scheduler.DrainTimeout,
	}, nil, tickQueue, repo, runners, emitter, cache, logger, collector)

	ctx, cancel := context.WithCancel(context.Background())

	poolDone := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(poolDone)
	}()

	// Worker metrics endpoint.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		if err := http.ListenAndServe(":9091", mux); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("Worker started", zap.Int("workers", cfg.Scheduler.WorkerCount))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker")
	cancel()

	// Let in-flight checks persist and alerts drain before exit.
	<-poolDone
	emitter.Wait()

	logger.Info("Worker exited")
}
