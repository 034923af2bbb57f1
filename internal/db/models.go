package db

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type MonitorType string

const (
	MonitorTypeHTTP      MonitorType = "http"
	MonitorTypePing      MonitorType = "ping"
	MonitorTypePagespeed MonitorType = "pagespeed"
)

func ValidMonitorType(t MonitorType) bool {
	switch t {
	case MonitorTypeHTTP, MonitorTypePing, MonitorTypePagespeed:
		return true
	}
	return false
}

// MinInterval is the smallest accepted check cadence.
const MinInterval = time.Second

// DefaultInterval matches the default monitor cadence of one minute.
const DefaultInterval = time.Minute

type Monitor struct {
	ID          string      `json:"id" db:"id"`
	UserID      string      `json:"user_id" db:"user_id"`
	TeamID      string      `json:"team_id" db:"team_id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description" db:"description"`
	Type        MonitorType `json:"type" db:"type"`
	URL         string      `json:"url" db:"url"`
	IsActive    bool        `json:"is_active" db:"is_active"`
	IntervalMs  int64       `json:"interval" db:"interval_ms"`
	// Status is the last-known up/down state. Nil until the first
	// check for the monitor completes.
	Status    *bool     `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.IntervalMs) * time.Millisecond
}

// Check is a single immutable probe result.
type Check struct {
	ID             string    `json:"id" db:"id"`
	MonitorID      string    `json:"monitor_id" db:"monitor_id"`
	Status         bool      `json:"status" db:"status"`
	StatusCode     *int      `json:"status_code,omitempty" db:"status_code"`
	ResponseTimeMs int       `json:"response_time_ms" db:"response_time_ms"`
	Message        string    `json:"message,omitempty" db:"message"`
	CheckedAt      time.Time `json:"checked_at" db:"checked_at"`
}

// PagespeedCheck carries the lighthouse category scores on top of the
// plain check fields. Stored in its own table.
type PagespeedCheck struct {
	ID             string    `json:"id" db:"id"`
	MonitorID      string    `json:"monitor_id" db:"monitor_id"`
	Status         bool      `json:"status" db:"status"`
	StatusCode     *int      `json:"status_code,omitempty" db:"status_code"`
	ResponseTimeMs int       `json:"response_time_ms" db:"response_time_ms"`
	Message        string    `json:"message,omitempty" db:"message"`
	Metrics        JSONB     `json:"metrics,omitempty" db:"metrics"`
	CheckedAt      time.Time `json:"checked_at" db:"checked_at"`
}

type Incident struct {
	ID         string     `json:"id" db:"id"`
	MonitorID  string     `json:"monitor_id" db:"monitor_id"`
	CheckID    string     `json:"check_id" db:"check_id"`
	Resolved   bool       `json:"resolved" db:"resolved"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	ResolvedAt *time.Time `json:"resolved_at" db:"resolved_at"`
}

type AlertDeliveryStatus string

const (
	AlertPending AlertDeliveryStatus = "pending"
	AlertSent    AlertDeliveryStatus = "sent"
	AlertFailed  AlertDeliveryStatus = "failed"
)

// Alert records one notification dispatch attempt tied to an incident
// transition. Delivery status is tracked independently of check
// persistence.
type Alert struct {
	ID             string              `json:"id" db:"id"`
	IncidentID     string              `json:"incident_id" db:"incident_id"`
	MonitorID      string              `json:"monitor_id" db:"monitor_id"`
	Channel        string              `json:"channel" db:"channel"`
	Recipient      string              `json:"recipient" db:"recipient"`
	DeliveryStatus AlertDeliveryStatus `json:"delivery_status" db:"delivery_status"`
	DeliveryID     string              `json:"delivery_id,omitempty" db:"delivery_id"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
}

// Notification is a per-monitor delivery channel configuration.
type Notification struct {
	ID        string    `json:"id" db:"id"`
	MonitorID string    `json:"monitor_id" db:"monitor_id"`
	Type      string    `json:"type" db:"type"`
	Address   string    `json:"address" db:"address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CheckFilter narrows ListChecks results.
type CheckFilter struct {
	Status *bool
}

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	return json.Unmarshal(value.([]byte), j)
}
