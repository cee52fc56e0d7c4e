package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sitewatch/internal/models"
)

// WebhookSender issues a timed HTTP call to the recipient URL. Method,
// headers and body come from the resolved action template; the response body
// is irrelevant, only a 2xx status counts as success.
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{client: &http.Client{Timeout: timeout}}
}

func (s *WebhookSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	method := msg.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, msg.Recipient, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request for %s: %w", msg.Recipient, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range msg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook call to %s failed: %w", msg.Recipient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s returned status %d", msg.Recipient, resp.StatusCode)
	}
	return nil
}
