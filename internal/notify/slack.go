// Package notify delivers watcher alerts to a Slack-compatible incoming
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// ErrNoWebhook is returned when no webhook URL is configured; the alert is
// skipped rather than failed.
var ErrNoWebhook = errors.New("webhook URL not configured")

// Field is a single title/value cell of an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Attachment groups fields under a plain-text fallback.
type Attachment struct {
	Fallback string  `json:"fallback"`
	Fields   []Field `json:"fields"`
}

// Message is the webhook payload.
type Message struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SlackNotifier posts messages to an incoming webhook.
type SlackNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// Option configures a SlackNotifier.
type Option func(*SlackNotifier)

// WithHTTPClient overrides the HTTP client, primarily for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(n *SlackNotifier) {
		n.client = client
	}
}

// NewSlack creates a notifier for url. An empty url yields a notifier that
// logs and skips every message.
func NewSlack(url string, logger *zap.Logger, opts ...Option) *SlackNotifier {
	n := &SlackNotifier{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends msg. Any non-2xx response is an error.
func (n *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	if n.url == "" {
		n.logger.Info("webhook not configured; skipping alert", zap.String("text", msg.Text))
		return ErrNoWebhook
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post webhook: unexpected status %d", resp.StatusCode)
	}

	n.logger.Info("alert sent", zap.String("text", msg.Text))
	return nil
}
