// Package notifier posts transfer lifecycle events to an external
// webhook.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Event is the JSON payload posted for one finished transfer.
type Event struct {
	Event  string `json:"event"`
	File   string `json:"file"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Notifier interface {
	Notify(ev Event) error
}

// WebhookNotifier posts transfer events to a configured URL.
type WebhookNotifier struct {
	WebhookURL string
}

func (n *WebhookNotifier) Notify(ev Event) error {
	if n.WebhookURL == "" {
		return fmt.Errorf("webhook URL is not set")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := http.Post(n.WebhookURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook failed with status %d", resp.StatusCode)
	}

	return nil
}
