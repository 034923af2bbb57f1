// Package notify is the delivery boundary for alert notifications.
// Dispatch is best-effort: callers log failures and never surface them
// into the probe pipeline.
package notify

import (
	"context"
	"time"
)

type Template string

const (
	TemplateIncident Template = "incident"
	TemplateRecovery Template = "recovery"
)

// Data is the payload rendered into a notification.
type Data struct {
	MonitorName string
	MonitorURL  string
	Message     string
	At          time.Time
}

// Notifier delivers one rendered notification to a recipient and
// returns a provider delivery id.
type Notifier interface {
	Send(ctx context.Context, tmpl Template, data Data, recipient, subject string) (deliveryID string, err error)
}
