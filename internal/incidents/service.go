package incidents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/status"
	"go.uber.org/zap"
)

// Store is the slice of persistence the emitter needs.
type Store interface {
	CreateIncident(ctx context.Context, i *db.Incident) error
	GetOpenIncident(ctx context.Context, monitorID string) (*db.Incident, error)
	ResolveIncident(ctx context.Context, monitorID string, at time.Time) (*db.Incident, error)
	CreateAlert(ctx context.Context, a *db.Alert) error
	UpdateAlertDelivery(ctx context.Context, alertID string, s db.AlertDeliveryStatus, deliveryID string) error
	GetNotificationsByMonitor(ctx context.Context, monitorID string) ([]*db.Notification, error)
}

// Service opens and resolves incidents on status transitions and
// dispatches alert notifications. Dispatch is fire-and-forget with
// bounded retry: a notification failure is logged and never rolls back
// the check or incident write.
type Service struct {
	store      Store
	notifiers  map[string]notify.Notifier
	logger     *zap.Logger
	metrics    *metrics.Collector
	maxRetries int

	wg sync.WaitGroup
}

func NewService(store Store, notifiers map[string]notify.Notifier, logger *zap.Logger, collector *metrics.Collector, maxRetries int) *Service {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Service{
		store:      store,
		notifiers:  notifiers,
		logger:     logger,
		metrics:    collector,
		maxRetries: maxRetries,
	}
}

// HandleTransition persists the incident side of a status transition.
// checkID references the check that triggered it.
func (s *Service) HandleTransition(ctx context.Context, monitor *db.Monitor, checkID, message string, at time.Time, transition status.Transition) error {
	switch transition {
	case status.TransitionToDown:
		return s.openIncident(ctx, monitor, checkID, message, at)
	case status.TransitionToUp:
		return s.resolveIncident(ctx, monitor, message, at)
	default:
		return nil
	}
}

func (s *Service) openIncident(ctx context.Context, monitor *db.Monitor, checkID, message string, at time.Time) error {
	// Repeated down results never reach this point, but an open
	// incident can survive a crash between status write and incident
	// write. Reuse it instead of stacking a duplicate.
	if existing, err := s.store.GetOpenIncident(ctx, monitor.ID); err == nil && existing != nil {
		s.logger.Warn("open incident already exists, skipping create",
			zap.String("monitor_id", monitor.ID),
			zap.String("incident_id", existing.ID),
		)
		return nil
	} else if err != nil && !errors.Is(err, db.ErrIncidentNotFound) {
		return fmt.Errorf("failed to get open incident: %w", err)
	}

	incident := &db.Incident{
		ID:        uuid.New().String(),
		MonitorID: monitor.ID,
		CheckID:   checkID,
		Resolved:  false,
		StartedAt: at,
	}

	if err := s.store.CreateIncident(ctx, incident); err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	s.metrics.RecordIncidentOpened()
	s.logger.Info("Incident opened",
		zap.String("incident_id", incident.ID),
		zap.String("monitor_id", monitor.ID),
		zap.String("reason", message),
	)

	subject := fmt.Sprintf("%s is down", monitor.Name)
	s.dispatchAlerts(monitor, incident, notify.TemplateIncident, subject, message, at)
	return nil
}

func (s *Service) resolveIncident(ctx context.Context, monitor *db.Monitor, message string, at time.Time) error {
	incident, err := s.store.ResolveIncident(ctx, monitor.ID, at)
	if err != nil {
		if errors.Is(err, db.ErrIncidentNotFound) {
			s.logger.Debug("no open incident to resolve",
				zap.String("monitor_id", monitor.ID))
			return nil
		}
		return fmt.Errorf("failed to resolve incident: %w", err)
	}

	s.metrics.RecordIncidentResolved()
	s.logger.Info("Incident resolved",
		zap.String("incident_id", incident.ID),
		zap.String("monitor_id", monitor.ID),
		zap.Duration("downtime", at.Sub(incident.StartedAt)),
	)

	subject := fmt.Sprintf("%s recovered", monitor.Name)
	s.dispatchAlerts(monitor, incident, notify.TemplateRecovery, subject, message, at)
	return nil
}

// dispatchAlerts records one alert per configured channel and sends
// each in the background. The tick is complete once the check is
// persisted; nothing here blocks it.
func (s *Service) dispatchAlerts(monitor *db.Monitor, incident *db.Incident, tmpl notify.Template, subject, message string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	channels, err := s.store.GetNotificationsByMonitor(ctx, monitor.ID)
	if err != nil {
		s.logger.Error("Failed to load notification channels",
			zap.Error(err),
			zap.String("monitor_id", monitor.ID),
		)
		return
	}

	data := notify.Data{
		MonitorName: monitor.Name,
		MonitorURL:  monitor.URL,
		Message:     message,
		At:          at,
	}

	for _, channel := range channels {
		notifier, ok := s.notifiers[channel.Type]
		if !ok {
			s.logger.Warn("No notifier for channel type",
				zap.String("channel_type", channel.Type),
				zap.String("monitor_id", monitor.ID),
			)
			continue
		}

		alert := &db.Alert{
			ID:             uuid.New().String(),
			IncidentID:     incident.ID,
			MonitorID:      monitor.ID,
			Channel:        channel.Type,
			Recipient:      channel.Address,
			DeliveryStatus: db.AlertPending,
			CreatedAt:      time.Now(),
		}

		if err := s.store.CreateAlert(ctx, alert); err != nil {
			s.logger.Error("Failed to create alert",
				zap.Error(err),
				zap.String("monitor_id", monitor.ID),
			)
			continue
		}

		s.wg.Add(1)
		go s.send(notifier, alert, tmpl, data, subject)
	}
}

func (s *Service) send(notifier notify.Notifier, alert *db.Alert, tmpl notify.Template, data notify.Data, subject string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var deliveryID string
	operation := func() error {
		var err error
		deliveryID, err = notifier.Send(ctx, tmpl, data, alert.Recipient, subject)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxRetries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		s.metrics.RecordNotification(alert.Channel, false)
		s.logger.Warn("Notification delivery failed",
			zap.Error(err),
			zap.String("alert_id", alert.ID),
			zap.String("channel", alert.Channel),
		)
		if uerr := s.store.UpdateAlertDelivery(ctx, alert.ID, db.AlertFailed, ""); uerr != nil {
			s.logger.Error("Failed to record alert failure", zap.Error(uerr))
		}
		return
	}

	s.metrics.RecordNotification(alert.Channel, true)
	if err := s.store.UpdateAlertDelivery(ctx, alert.ID, db.AlertSent, deliveryID); err != nil {
		s.logger.Error("Failed to record alert delivery", zap.Error(err))
	}
}

// Wait blocks until all in-flight notification sends have finished.
// Called during engine shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}
