// Package webhook pushes run events to an external HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/sortcheck/models"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Sortcheck-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string               `json:"type"`
	RunID     string               `json:"run_id"`
	Timestamp int64                `json:"timestamp"`
	Data      models.ProgressEvent `json:"data"`
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, client *http.Client, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Sortcheck-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sink publishes progress events to one endpoint. Unless all is set, only
// terminal events (result and error) are sent.
type Sink struct {
	url    string
	secret string
	all    bool
	client *http.Client

	// delays between attempts; the first entry is normally zero.
	delays []time.Duration
}

// NewSink creates a Sink. It returns nil when url is empty; a nil *Sink
// drops every event.
func NewSink(url, secret string, all bool) *Sink {
	if url == "" {
		return nil
	}
	return &Sink{
		url:    url,
		secret: secret,
		all:    all,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Publish queues ev for asynchronous delivery.
func (s *Sink) Publish(ev models.ProgressEvent) {
	if s == nil {
		return
	}
	if !s.all && !ev.Terminal() {
		return
	}
	event := &Event{
		Type:      ev.Type,
		RunID:     ev.RunID,
		Timestamp: time.Now().Unix(),
		Data:      ev,
	}
	go s.deliverWithRetry(event)
}

// deliverWithRetry tries once per entry in s.delays.
func (s *Sink) deliverWithRetry(event *Event) bool {
	for attempt, delay := range s.delays {
		if delay > 0 {
			time.Sleep(delay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := Deliver(ctx, s.client, s.url, s.secret, event)
		cancel()
		if err == nil {
			slog.Info("webhook delivered",
				"url", s.url,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
			)
			return true
		}
		slog.Warn("webhook delivery failed",
			"url", s.url,
			"event", event.Type,
			"run_id", event.RunID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", s.url,
		"event", event.Type,
		"run_id", event.RunID,
	)
	return false
}
