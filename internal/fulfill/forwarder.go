// Package fulfill delivers normalized orders to the supplier fulfillment
// endpoint, either directly from the webhook handler or through the asynq
// retry queue.
package fulfill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/atelier-noir/checkout-relay/internal/obs"
	"github.com/atelier-noir/checkout-relay/internal/order"
	"github.com/atelier-noir/checkout-relay/internal/resilience"
)

// ErrNotConfigured is returned when no supplier URL is set. The webhook
// handler treats this as degraded mode, not an error.
var ErrNotConfigured = errors.New("fulfill: supplier webhook url not configured")

// Forwarder POSTs normalized orders to the supplier endpoint.
type Forwarder struct {
	URL       string
	AuthToken string
	HTTP      *resilience.HTTPClient
	Mode      string
	Log       zerolog.Logger
}

// Deliver sends the order as JSON. The supplier must tolerate at-least-once
// delivery; the X-Idempotency-Key header carries the provider session id to
// make that possible.
func (f *Forwarder) Deliver(ctx context.Context, o order.Order) error {
	if f.URL == "" {
		return ErrNotConfigured
	}
	if f.HTTP == nil {
		return errors.New("fulfill: http client not configured")
	}
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "checkout-relay/1.0")
	// The supplier dedupes on this key; it must never be empty.
	idempotencyKey := o.OrderID
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	req.Header.Set("X-Idempotency-Key", idempotencyKey)
	if f.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.AuthToken)
	}

	start := time.Now()
	resp, err := f.HTTP.Do(ctx, req)
	if err != nil {
		f.observe("error", start)
		return fmt.Errorf("forward order %s: %w", o.OrderID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.observe("error", start)
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("supplier responded %d for order %s: %s", resp.StatusCode, o.OrderID, snippet)
	}
	f.observe("ok", start)
	return nil
}

func (f *Forwarder) observe(result string, start time.Time) {
	mode := f.Mode
	if mode == "" {
		mode = "direct"
	}
	if obs.OrderForwardTotal != nil {
		obs.OrderForwardTotal.WithLabelValues(mode, result).Inc()
	}
	if obs.OrderForwardLatency != nil {
		obs.OrderForwardLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
}

// HTTPClient returns an http.Client configured for supplier delivery with
// tracing on the transport.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
