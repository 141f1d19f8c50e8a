package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	stripe "github.com/stripe/stripe-go/v80"

	"github.com/atelier-noir/checkout-relay/internal/common"
	"github.com/atelier-noir/checkout-relay/internal/obs"
	"github.com/atelier-noir/checkout-relay/internal/order"
)

type replayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// OrderSink receives the normalized order once a completed session has been
// expanded. Implementations either forward directly to the supplier or hand
// the order to the retry queue.
type OrderSink interface {
	Deliver(ctx context.Context, o order.Order) error
}

// Webhook receives Stripe callbacks. Signature verification is the only step
// that can reject the request; once it passes, every event is acknowledged
// with 200 {"received":true} regardless of type or downstream outcome, per
// the provider's webhook contract.
type Webhook struct {
	Verifier  Verifier
	Sessions  SessionExpander
	Sink      OrderSink
	Log       zerolog.Logger
	Replay    replayStore
	ReplayTTL time.Duration
	Now       func() time.Time
}

// Handle processes a single webhook delivery. The body is read raw and must
// not be JSON-parsed before verification.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("payment.Webhook").Start(r.Context(), "Webhook.Handle")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		span.RecordError(err)
		h.count("read_error")
		http.Error(w, fmt.Sprintf("Webhook Error: %v", err), http.StatusBadRequest)
		return
	}

	event, err := h.Verifier.VerifyEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		span.RecordError(err)
		h.count("invalid_signature")
		h.Log.Warn().Err(err).Msg("webhook signature verification failed")
		http.Error(w, fmt.Sprintf("Webhook Error: %v", err), http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("stripe.event_id", event.ID),
		attribute.String("stripe.event_type", string(event.Type)),
	)

	outcome := h.process(ctx, event, body)
	h.count(outcome)

	h.acknowledge(w)
}

// process runs the post-verification pipeline: branch on type, dedupe,
// expand, normalize, deliver. Every failure past this point is logged and
// swallowed so the provider still receives its acknowledgement; the returned
// outcome feeds the webhook metric.
func (h Webhook) process(ctx context.Context, event stripe.Event, body []byte) string {
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		h.Log.Debug().Str("event_type", string(event.Type)).Msg("ignoring webhook event type")
		return "ignored"
	}

	if dup, err := h.seenBefore(ctx, replayKey(event, body)); err != nil {
		// Replay store trouble must not block order flow; proceed without dedupe.
		h.Log.Error().Err(err).Msg("webhook replay store unavailable")
	} else if dup {
		h.Log.Info().Str("event_id", event.ID).Msg("duplicate webhook delivery suppressed")
		return "duplicate"
	}

	var summary struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &summary); err != nil || summary.ID == "" {
		h.Log.Error().Err(err).Str("event_id", event.ID).Msg("webhook payload missing session id")
		return "bad_payload"
	}

	full, err := h.Sessions.ExpandSession(ctx, summary.ID)
	if err != nil {
		h.Log.Error().Err(err).Str("session_id", summary.ID).Msg("expand checkout session")
		return "expand_error"
	}

	o := order.FromSession(full, h.now())
	h.Log.Info().
		Str("order_id", o.OrderID).
		Str("currency", o.Currency).
		Float64("total_amount", o.TotalAmount).
		Int("products", len(o.Products)).
		Msg("order processed")

	if h.Sink == nil {
		h.Log.Warn().Str("order_id", o.OrderID).Msg("supplier webhook url not configured, order not forwarded")
		return "not_forwarded"
	}
	if err := h.Sink.Deliver(ctx, o); err != nil {
		h.Log.Error().Err(err).Str("order_id", o.OrderID).Msg("forward order to supplier")
		return "forward_error"
	}
	h.Log.Info().Str("order_id", o.OrderID).Msg("order forwarded to supplier")
	return "forwarded"
}

// replayKey identifies a delivery for dedupe purposes. The provider event ID
// is stable across redeliveries; a body digest covers events without one.
func replayKey(event stripe.Event, body []byte) string {
	if event.ID != "" {
		return "stripewh:" + event.ID
	}
	return "stripewh:" + common.Sha256Hex(string(body))
}

// seenBefore records the delivery key in the replay store and reports whether
// it was already present. With no store configured every delivery is treated
// as first-seen, matching at-least-once semantics.
func (h Webhook) seenBefore(ctx context.Context, key string) (bool, error) {
	if h.Replay == nil || h.ReplayTTL <= 0 {
		return false, nil
	}
	ok, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (h Webhook) acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

func (h Webhook) count(outcome string) {
	if obs.StripeWebhookTotal != nil {
		obs.StripeWebhookTotal.WithLabelValues(outcome).Inc()
	}
}

func (h Webhook) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
