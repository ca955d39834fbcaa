// Package notify sends operational alerts to a webhook, deduplicating by
// key so a run raises each alert at most once.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier raises an operational alert. Implementations decide transport
// and deduplication.
type Notifier interface {
	Notify(ctx context.Context, key, message string) error
}

// Nop discards every alert.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }

// Webhook posts alerts as JSON to a webhook URL. Each key is delivered at
// most once per process lifetime.
type Webhook struct {
	url        string
	channel    string
	httpClient *http.Client
	logger     *zap.Logger

	mu   sync.Mutex
	seen map[string]bool
}

var _ Notifier = (*Webhook)(nil)

// NewWebhook creates a webhook notifier.
func NewWebhook(url, channel string, logger *zap.Logger) *Webhook {
	return &Webhook{
		url:        url,
		channel:    channel,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		seen:       make(map[string]bool),
	}
}

// Notify posts the message unless the key was already delivered.
func (w *Webhook) Notify(ctx context.Context, key, message string) error {
	w.mu.Lock()
	if w.seen[key] {
		w.mu.Unlock()
		return nil
	}
	w.seen[key] = true
	w.mu.Unlock()

	payload, err := json.Marshal(map[string]string{
		"channel": w.channel,
		"text":    message,
	})
	if err != nil {
		return fmt.Errorf("notify: failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Error("alert delivery failed", zap.String("key", key), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		w.logger.Error("alert rejected by webhook",
			zap.String("key", key),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
