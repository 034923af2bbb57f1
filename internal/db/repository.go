package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	ErrMonitorNotFound  = errors.New("monitor not found")
	ErrIncidentNotFound = errors.New("incident not found")
)

// DefaultPageSize is the page size used by ListChecks when none is given.
const DefaultPageSize = 14

type Repository struct {
	db *sqlx.DB
}

func NewConnection(databaseURL string, maxConns, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Monitor operations

func (r *Repository) CreateMonitor(ctx context.Context, m *Monitor) error {
	query := `
		INSERT INTO monitors (
			id, user_id, team_id, name, description, type, url,
			is_active, interval_ms, status, created_at, updated_at
		) VALUES (
			:id, :user_id, :team_id, :name, :description, :type, :url,
			:is_active, :interval_ms, :status, :created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, m)
	return err
}

func (r *Repository) GetMonitor(ctx context.Context, id string) (*Monitor, error) {
	var m Monitor
	err := r.db.GetContext(ctx, &m, `SELECT * FROM monitors WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMonitorNotFound
	}
	return &m, err
}

func (r *Repository) UpdateMonitor(ctx context.Context, m *Monitor) error {
	query := `
		UPDATE monitors SET
			name = :name,
			description = :description,
			type = :type,
			url = :url,
			is_active = :is_active,
			interval_ms = :interval_ms,
			updated_at = :updated_at
		WHERE id = :id`

	_, err := r.db.NamedExecContext(ctx, query, m)
	return err
}

func (r *Repository) SetMonitorActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE monitors SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMonitorNotFound
	}
	return nil
}

// UpdateMonitorStatus writes the last-known up/down state. This is the
// only monitor field the engine mutates.
func (r *Repository) UpdateMonitorStatus(ctx context.Context, id string, status bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE monitors SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *Repository) DeleteMonitor(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM monitors WHERE id = $1`, id)
	return err
}

func (r *Repository) ListMonitors(ctx context.Context) ([]*Monitor, error) {
	monitors := []*Monitor{}
	err := r.db.SelectContext(ctx, &monitors,
		`SELECT * FROM monitors ORDER BY created_at`)
	return monitors, err
}

func (r *Repository) GetMonitorsByUser(ctx context.Context, userID string) ([]*Monitor, error) {
	monitors := []*Monitor{}
	err := r.db.SelectContext(ctx, &monitors,
		`SELECT * FROM monitors WHERE user_id = $1 ORDER BY created_at`, userID)
	return monitors, err
}

// Check operations

func (r *Repository) InsertCheck(ctx context.Context, c *Check) error {
	query := `
		INSERT INTO checks (
			id, monitor_id, status, status_code, response_time_ms, message, checked_at
		) VALUES (
			:id, :monitor_id, :status, :status_code, :response_time_ms, :message, :checked_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, c)
	return err
}

func (r *Repository) InsertPagespeedCheck(ctx context.Context, c *PagespeedCheck) error {
	query := `
		INSERT INTO pagespeed_checks (
			id, monitor_id, status, status_code, response_time_ms, message, metrics, checked_at
		) VALUES (
			:id, :monitor_id, :status, :status_code, :response_time_ms, :message, :metrics, :checked_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, c)
	return err
}

// ListChecks returns one page of checks for a monitor plus the total
// match count. Pages are 0-indexed; a page past the end yields an empty
// slice, not an error.
func (r *Repository) ListChecks(ctx context.Context, monitorID string, filter CheckFilter, sortOrder string, page, pageSize int) ([]*Check, int, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}

	order := "DESC"
	if sortOrder == "asc" {
		order = "ASC"
	}

	where := `WHERE monitor_id = $1`
	args := []interface{}{monitorID}
	if filter.Status != nil {
		where += ` AND status = $2`
		args = append(args, *filter.Status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM checks `+where, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT * FROM checks %s ORDER BY checked_at %s LIMIT %d OFFSET %d`,
		where, order, pageSize, page*pageSize)

	checks := []*Check{}
	if err := r.db.SelectContext(ctx, &checks, query, args...); err != nil {
		return nil, 0, err
	}

	return checks, total, nil
}

func (r *Repository) DeleteChecksByMonitor(ctx context.Context, monitorID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM checks WHERE monitor_id = $1`, monitorID)
	return err
}

func (r *Repository) DeletePagespeedChecksByMonitor(ctx context.Context, monitorID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pagespeed_checks WHERE monitor_id = $1`, monitorID)
	return err
}

// Incident operations

func (r *Repository) CreateIncident(ctx context.Context, i *Incident) error {
	query := `
		INSERT INTO incidents (id, monitor_id, check_id, resolved, started_at)
		VALUES (:id, :monitor_id, :check_id, :resolved, :started_at)`

	_, err := r.db.NamedExecContext(ctx, query, i)
	return err
}

func (r *Repository) GetOpenIncident(ctx context.Context, monitorID string) (*Incident, error) {
	var i Incident
	err := r.db.GetContext(ctx, &i, `
		SELECT * FROM incidents
		WHERE monitor_id = $1 AND resolved = false
		ORDER BY started_at DESC
		LIMIT 1`, monitorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIncidentNotFound
	}
	return &i, err
}

// ResolveIncident closes the most recent open incident for the monitor.
func (r *Repository) ResolveIncident(ctx context.Context, monitorID string, at time.Time) (*Incident, error) {
	incident, err := r.GetOpenIncident(ctx, monitorID)
	if err != nil {
		return nil, err
	}

	incident.Resolved = true
	incident.ResolvedAt = &at

	_, err = r.db.ExecContext(ctx,
		`UPDATE incidents SET resolved = true, resolved_at = $2 WHERE id = $1`,
		incident.ID, at)
	return incident, err
}

func (r *Repository) GetIncidentsByMonitor(ctx context.Context, monitorID string, limit int) ([]*Incident, error) {
	incidents := []*Incident{}
	err := r.db.SelectContext(ctx, &incidents, `
		SELECT * FROM incidents
		WHERE monitor_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, monitorID, limit)
	return incidents, err
}

// Alert operations

func (r *Repository) CreateAlert(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (
			id, incident_id, monitor_id, channel, recipient,
			delivery_status, delivery_id, created_at
		) VALUES (
			:id, :incident_id, :monitor_id, :channel, :recipient,
			:delivery_status, :delivery_id, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, a)
	return err
}

func (r *Repository) UpdateAlertDelivery(ctx context.Context, alertID string, status AlertDeliveryStatus, deliveryID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET delivery_status = $2, delivery_id = $3 WHERE id = $1`,
		alertID, status, deliveryID)
	return err
}

func (r *Repository) DeleteAlertsByMonitor(ctx context.Context, monitorID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE monitor_id = $1`, monitorID)
	return err
}

// Notification channel configuration

func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, monitor_id, type, address, created_at)
		VALUES (:id, :monitor_id, :type, :address, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, n)
	return err
}

func (r *Repository) GetNotificationsByMonitor(ctx context.Context, monitorID string) ([]*Notification, error) {
	notifications := []*Notification{}
	err := r.db.SelectContext(ctx, &notifications,
		`SELECT * FROM notifications WHERE monitor_id = $1`, monitorID)
	return notifications, err
}

func (r *Repository) DeleteNotificationsByMonitor(ctx context.Context, monitorID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE monitor_id = $1`, monitorID)
	return err
}

// CheckStats aggregates uptime over a window, used by the stats endpoint.
type CheckStats struct {
	Total             int     `db:"total"`
	Up                int     `db:"up"`
	AvgResponseTimeMs float64 `db:"avg_response_time_ms"`
}

func (r *Repository) GetCheckStats(ctx context.Context, monitorID string, since time.Time) (*CheckStats, error) {
	var s CheckStats
	err := r.db.GetContext(ctx, &s, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status) AS up,
			COALESCE(AVG(response_time_ms), 0) AS avg_response_time_ms
		FROM checks
		WHERE monitor_id = $1 AND checked_at >= $2`, monitorID, since)
	return &s, err
}
