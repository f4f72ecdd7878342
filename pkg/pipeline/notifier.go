package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/receiptvault-backend/pkg/config"
	"github.com/google/uuid"
)

const responseBodyReadLimit int64 = 1024

// Event is the payload sent to the extraction pipeline after an upload
// completes. DownloadURL is a short-lived signed URL the pipeline uses to
// fetch the object without storage credentials.
type Event struct {
	ReceiptID   uuid.UUID `json:"receipt_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	DownloadURL string    `json:"download_url"`
}

// Notifier posts upload events to the extraction pipeline webhook. Callers
// treat delivery as best effort; a missed event is recovered by re-running
// the completion call.
type Notifier struct {
	httpClient *http.Client
	webhookURL string
}

// Option configures optional notifier behavior.
type Option func(*Notifier)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		if client != nil {
			n.httpClient = client
		}
	}
}

// NewNotifier builds a webhook notifier. An empty webhook URL produces a
// notifier whose Notify is a no-op, which keeps local development working
// without a pipeline deployment.
func NewNotifier(cfg config.IngestionConfig, opts ...Option) *Notifier {
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	n := &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		webhookURL: strings.TrimSpace(cfg.WebhookURL),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Notify delivers the event to the pipeline webhook.
func (n *Notifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.webhookURL == "" {
		return nil
	}
	if event.ReceiptID == uuid.Nil || event.OwnerID == uuid.Nil {
		return fmt.Errorf("receipt and owner IDs are required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal pipeline event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build pipeline request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute pipeline request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return fmt.Errorf("pipeline webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
