package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mindburn-Labs/igcatalog/pkg/reconcile"
)

const defaultNotifyTimeout = 10 * time.Second

// Notifier reports an event's outcome to whoever issued it.
type Notifier interface {
	Notify(ctx context.Context, ev Event, status reconcile.Status, reason string) error
}

// HTTPNotifier PUTs the response document to the event's ResponseURL.
type HTTPNotifier struct {
	client *http.Client
}

// NewHTTPNotifier creates a notifier. A nil client gets a default with a
// bounded timeout.
func NewHTTPNotifier(client *http.Client) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: defaultNotifyTimeout}
	}
	return &HTTPNotifier{client: client}
}

func (n *HTTPNotifier) Notify(ctx context.Context, ev Event, status reconcile.Status, reason string) error {
	if ev.ResponseURL == "" {
		return fmt.Errorf("event has no response url")
	}
	payload, err := json.Marshal(NewResponse(ev, status, reason))
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ev.ResponseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build response request: %w", err)
	}
	// Presigned response urls are signed without a content type.
	req.Header.Set("Content-Type", "")
	req.ContentLength = int64(len(payload))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("response endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes outcomes to the log. It is used when events are run
// locally without a response endpoint.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: slog.Default().With("component", "lifecycle")}
}

func (n *LogNotifier) Notify(ctx context.Context, ev Event, status reconcile.Status, reason string) error {
	n.logger.InfoContext(ctx, "provisioning outcome",
		"request_type", string(ev.RequestType),
		"request_id", ev.RequestID,
		"status", string(status),
		"reason", reason,
	)
	return nil
}
