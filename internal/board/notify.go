package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier announces a newly created board item on a side channel.
type Notifier interface {
	Notify(ctx context.Context, title string, iid int) error
}

// WebhookNotifier posts backlog announcements to a Discord webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier returns nil when url is empty. A nil notifier is a no-op.
func NewWebhookNotifier(url string) *WebhookNotifier {
	if url == "" {
		return nil
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts "New issue created: **title** (#iid)".
func (n *WebhookNotifier) Notify(ctx context.Context, title string, iid int) error {
	if n == nil {
		return nil
	}
	body, err := json.Marshal(map[string]string{
		"content": fmt.Sprintf("New issue created: **%s** (#%d)", title, iid),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("backlog webhook returned %s", resp.Status)
	}
	return nil
}
