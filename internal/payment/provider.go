// Package payment integrates with the Stripe-hosted checkout flow: session
// creation, webhook signature verification and session expansion.
package payment

import (
	"context"
	"net/http"

	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// Verifier authenticates a raw webhook payload against its signature header.
// The payload must be the unparsed request body bytes.
type Verifier interface {
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// SessionCreator opens a hosted checkout session with the provider.
type SessionCreator interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// SessionExpander fetches the full session detail, including line items and
// expanded product data, after a completed-session webhook.
type SessionExpander interface {
	ExpandSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

// Stripe implements Verifier, SessionCreator and SessionExpander against the
// Stripe API.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

// NewStripe constructs a Stripe client. A custom http.Client may be supplied
// to bound outbound call timeouts; nil falls back to the SDK default.
func NewStripe(secretKey, webhookSecret string, httpClient *http.Client) *Stripe {
	api := &client.API{}
	if httpClient != nil {
		api.Init(secretKey, stripe.NewBackends(httpClient))
	} else {
		api.Init(secretKey, nil)
	}
	return &Stripe{api: api, webhookSecret: webhookSecret}
}

// VerifyEvent checks the Stripe-Signature header against the signing secret
// and returns the parsed event. API version mismatches are tolerated; the
// handler only inspects stable fields.
func (s *Stripe) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// CreateSession opens a hosted checkout session.
func (s *Stripe) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return s.api.CheckoutSessions.New(params)
}

// ExpandSession retrieves the full session with line items and product data.
// The webhook payload itself only carries a summary.
func (s *Stripe) ExpandSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price.product")
	return s.api.CheckoutSessions.Get(id, params)
}
