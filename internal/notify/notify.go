// Package notify delivers trade event messages to external sinks. Delivery is
// strictly best-effort: a failed notification is logged and dropped, and must
// never affect trading decisions or state.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// Notifier delivers a human-readable message about a trade event.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Noop discards all messages. Used when no webhook is configured.
type Noop struct{}

// NewNoop returns a notifier that discards all messages.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Notify(_ context.Context, _ string) error {
	return nil
}

// Webhook posts messages to a Discord-compatible webhook URL as a JSON
// payload with a "content" field.
type Webhook struct {
	client *resty.Client
	url    string
}

// NewWebhook creates a webhook notifier for the given URL.
func NewWebhook(url string) (*Webhook, error) {
	if url == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "webhook notifier requires a URL")
	}

	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Webhook{
		client: client,
		url:    url,
	}, nil
}

// Notify posts the message to the webhook.
func (w *Webhook) Notify(ctx context.Context, message string) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"content": message}).
		Post(w.url)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotificationFailure, "failed to post webhook notification", err)
	}

	if resp.IsError() {
		return errors.Newf(errors.ErrCodeNotificationFailure, "webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// EntryMessage formats a position-entry notification.
func EntryMessage(symbol string, quantity, price float64) string {
	return fmt.Sprintf("ENTER %s: bought %.8f @ %.2f", symbol, quantity, price)
}

// ExitMessage formats a position-exit notification.
func ExitMessage(symbol string, quantity, price float64) string {
	return fmt.Sprintf("EXIT %s: sold %.8f @ %.2f", symbol, quantity, price)
}

// PauseMessage formats a circuit-breaker notification.
func PauseMessage(symbol string, failures int, pause time.Duration) string {
	return fmt.Sprintf("PAUSED %s: %d consecutive failures, sleeping %s", symbol, failures, pause)
}
