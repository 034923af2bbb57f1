package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WebhookNotifier posts Slack-compatible JSON payloads to the
// recipient URL.
type WebhookNotifier struct {
	client *http.Client
}

func NewWebhookNotifier(timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Text string `json:"text"`
}

func (w *WebhookNotifier) Send(ctx context.Context, tmpl Template, data Data, recipient, subject string) (string, error) {
	text := renderText(tmpl, data, subject)

	body, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recipient, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return uuid.New().String(), nil
}

func renderText(tmpl Template, data Data, subject string) string {
	header := "🔴 Monitor DOWN"
	if tmpl == TemplateRecovery {
		header = "🟢 Monitor RECOVERED"
	}

	return fmt.Sprintf("*%s*\n%s\nMonitor: %s\nURL: %s\nReason: %s\nAt: %s",
		header, subject, data.MonitorName, data.MonitorURL, data.Message,
		data.At.Format(time.RFC3339))
}
