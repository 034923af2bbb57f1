package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pulsewatch/pulsewatch/internal/checks"
	"github.com/pulsewatch/pulsewatch/internal/db"
)

type Collector struct {
	registry *prometheus.Registry

	checkDuration *prometheus.HistogramVec
	checkUp       *prometheus.GaugeVec
	checksTotal   *prometheus.CounterVec
	checksDropped prometheus.Counter
	ticksSkipped  *prometheus.CounterVec

	queueSize       prometheus.Gauge
	incidentsTotal  *prometheus.CounterVec
	incidentsActive prometheus.Gauge

	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulsewatch_check_duration_seconds",
				Help:    "Duration of probe executions in seconds",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"monitor_id", "type"},
		),

		checkUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulsewatch_check_up",
				Help: "Whether the last check was up (1) or down (0)",
			},
			[]string{"monitor_id", "type"},
		),

		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_checks_total",
				Help: "Total number of checks performed",
			},
			[]string{"type", "status"},
		),

		checksDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pulsewatch_checks_dropped_total",
				Help: "Checks lost after a failed persistence retry",
			},
		),

		ticksSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_ticks_skipped_total",
				Help: "Ticks skipped because the previous tick was still running",
			},
			[]string{"monitor_id"},
		),

		queueSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulsewatch_tick_queue_size",
				Help: "Pending ticks in the queue",
			},
		),

		incidentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_incidents_total",
				Help: "Incident transitions by direction",
			},
			[]string{"transition"},
		),

		incidentsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulsewatch_incidents_active",
				Help: "Currently open incidents",
			},
		),

		notificationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_notifications_sent_total",
				Help: "Notifications dispatched successfully",
			},
			[]string{"channel"},
		),

		notificationsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_notifications_failed_total",
				Help: "Notifications that failed after retries",
			},
			[]string{"channel"},
		),
	}
}

func (c *Collector) RecordCheck(monitor *db.Monitor, result *checks.Result) {
	statusLabel := "down"
	up := 0.0
	if result.Success {
		statusLabel = "up"
		up = 1.0
	}

	c.checksTotal.WithLabelValues(string(monitor.Type), statusLabel).Inc()
	c.checkUp.WithLabelValues(monitor.ID, string(monitor.Type)).Set(up)
	c.checkDuration.WithLabelValues(monitor.ID, string(monitor.Type)).
		Observe(float64(result.ResponseTimeMs) / 1000)
}

func (c *Collector) RecordCheckDropped() {
	c.checksDropped.Inc()
}

func (c *Collector) RecordTickSkipped(monitorID string) {
	c.ticksSkipped.WithLabelValues(monitorID).Inc()
}

func (c *Collector) SetQueueSize(n int64) {
	c.queueSize.Set(float64(n))
}

func (c *Collector) RecordIncidentOpened() {
	c.incidentsTotal.WithLabelValues("to-down").Inc()
	c.incidentsActive.Inc()
}

func (c *Collector) RecordIncidentResolved() {
	c.incidentsTotal.WithLabelValues("to-up").Inc()
	c.incidentsActive.Dec()
}

func (c *Collector) RecordNotification(channel string, success bool) {
	if success {
		c.notificationsSent.WithLabelValues(channel).Inc()
	} else {
		c.notificationsFailed.WithLabelValues(channel).Inc()
	}
}

// Handler exposes the collector's registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
