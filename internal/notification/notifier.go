// Package notification delivers user-facing notices about ticket activity.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Notification is a single notice addressed to one party.
type Notification struct {
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	ActionURL string `json:"action_url,omitempty"`
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// WebhookNotifier POSTs each notification as JSON to a platform endpoint.
type WebhookNotifier struct {
	url     string
	timeout time.Duration
}

// NewWebhookNotifier builds a notifier for url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{url: url, timeout: timeout}
}

// Notify sends n and fails on transport errors or non-2xx responses.
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	agent := fiber.Post(w.url)
	agent.JSON(n)
	agent.Timeout(w.timeout)
	agent.UserAgent("order-ticket-service")

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook notify: %w", errs[0])
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook notify: status %d: %s", status, truncate(body, 200))
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no webhook is set.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info("notification",
		zap.String("user_id", n.UserID),
		zap.String("title", n.Title),
		zap.String("action_url", n.ActionURL))
	return nil
}

func truncate(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit])
}
