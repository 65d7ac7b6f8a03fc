package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	defaultWebhookRetries = 2
	webhookBackoffBase    = 200 * time.Millisecond
)

// WebhookPublisher POSTs change events to a configured HTTP endpoint, signed
// with HMAC-SHA256. 5xx responses and transport failures are retried with
// exponential backoff; any other non-2xx response fails immediately.
type WebhookPublisher struct {
	url     string
	secret  []byte
	client  *http.Client
	retries uint64
	backoff time.Duration
}

// NewWebhookPublisher returns a publisher for url. A zero or negative timeout
// falls back to defaultWebhookTimeout.
func NewWebhookPublisher(url, secret string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookPublisher{
		url:     url,
		secret:  []byte(secret),
		client:  &http.Client{Timeout: timeout},
		retries: defaultWebhookRetries,
		backoff: webhookBackoffBase,
	}
}

// Publish sends event as JSON with these headers:
//
//	Content-Type:          application/json
//	X-Caprepair-Event-Id:  <event.EventID>
//	X-Caprepair-Kind:      <event.Kind>
//	X-Caprepair-Action:    <event.Action>
//	X-Hub-Signature-256:   sha256=<hex-encoded HMAC-SHA256>
func (p *WebhookPublisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	sig := p.sign(payload)

	policy := retry.WithMaxRetries(p.retries, retry.NewExponential(p.backoff))
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		return p.send(ctx, event, payload, sig)
	})
}

func (p *WebhookPublisher) send(ctx context.Context, event domain.ChangeEvent, payload []byte, sig string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caprepair-Event-Id", event.EventID)
	req.Header.Set("X-Caprepair-Kind", string(event.Kind))
	req.Header.Set("X-Caprepair-Action", string(event.Action))
	req.Header.Set("X-Hub-Signature-256", "sha256="+sig)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("send webhook: %w", err)
		}
		return retry.RetryableError(fmt.Errorf("send webhook: %w", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *WebhookPublisher) sign(payload []byte) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
