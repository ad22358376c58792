// Package webhook delivers job completion events to an HTTP endpoint.
//
// Each event is POSTed as JSON. Deliveries carry the session ID so receivers
// can drop duplicates produced by retries, and an optional HMAC-SHA256
// signature over the body when a secret is configured.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pithecene-io/reel/adapter"
	"github.com/pithecene-io/reel/iox"
)

const (
	// DefaultTimeout bounds a single delivery attempt.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the number of redeliveries after a failed attempt.
	DefaultRetries = 3
)

// Delivery headers set on every request.
const (
	HeaderEvent     = "X-Reel-Event"
	HeaderSession   = "X-Reel-Session"
	HeaderSignature = "X-Reel-Signature"
)

// Config configures webhook delivery.
type Config struct {
	URL     string
	Headers map[string]string
	// Secret enables the X-Reel-Signature header when non-empty.
	Secret  string
	Timeout time.Duration
	Retries int
}

// Adapter posts events to Config.URL.
type Adapter struct {
	endpoint string
	headers  map[string]string
	secret   []byte
	retries  int
	client   *http.Client
}

// New validates cfg and returns a ready adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("webhook adapter: invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook adapter: unsupported scheme %q", u.Scheme)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	a := &Adapter{
		endpoint: u.String(),
		headers:  cfg.Headers,
		retries:  cfg.Retries,
		client:   &http.Client{Timeout: timeout},
	}
	if cfg.Secret != "" {
		a.secret = []byte(cfg.Secret)
	}
	return a, nil
}

// Publish delivers event, retrying transport errors and 5xx responses.
func (a *Adapter) Publish(ctx context.Context, event *adapter.JobCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "webhook", a.retries, func(ctx context.Context) error {
		return a.deliver(ctx, event.SessionID, body)
	}, retriable)
}

// Sign returns the hex HMAC-SHA256 of body under secret, prefixed "sha256=".
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// retriable rejects 4xx responses; the receiver will refuse them again.
func retriable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code < 400 || se.Code >= 500
	}
	return true
}

func (a *Adapter) deliver(ctx context.Context, sessionID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, adapter.EventTypeJobCompleted)
	req.Header.Set(HeaderSession, sessionID)
	if a.secret != nil {
		req.Header.Set(HeaderSignature, Sign(a.secret, body))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close drops idle keep-alive connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
