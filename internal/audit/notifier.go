package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers admin notifications for high-severity entries.
// Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, entry *Entry) error
}

// LogNotifier is the default notifier: it writes the alert to the error
// stream via zap.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs alerts.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, entry *Entry) error {
	n.logger.Error("SECURITY ALERT: admin attention required",
		zap.String("entry_id", entry.ID),
		zap.String("customer_id", entry.CustomerID),
		zap.String("event_type", string(entry.EventType)),
		zap.String("severity", entry.Severity),
		zap.String("action_taken", entry.ActionTaken),
	)
	return nil
}

// WebhookNotifier POSTs the entry as JSON to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, entry *Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("webhook notify: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook notify: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook notify: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notify: unexpected status %d", resp.StatusCode)
	}
	return nil
}
