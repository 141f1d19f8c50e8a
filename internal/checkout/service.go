// Package checkout turns a storefront cart into a Stripe-hosted checkout
// session.
package checkout

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	stripe "github.com/stripe/stripe-go/v80"

	"github.com/atelier-noir/checkout-relay/internal/common"
	"github.com/atelier-noir/checkout-relay/internal/payment"
)

// Item is a single cart line as submitted by the storefront. Price is in
// major currency units (e.g. 29.99).
type Item struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Price       float64  `json:"price" validate:"gte=0"`
	Quantity    int64    `json:"quantity" validate:"gte=0"`
	Currency    string   `json:"currency"`
	Images      []string `json:"images"`
	Variant     string   `json:"variant"`
}

// Request is the create-checkout-session payload.
type Request struct {
	Items         []Item `json:"items" validate:"required,min=1,dive"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
	SuccessURL    string `json:"successUrl" validate:"omitempty,url"`
	CancelURL     string `json:"cancelUrl" validate:"omitempty,url"`
}

// Session is the provider-assigned session handle returned to the client.
// It is transient and never stored.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Service builds provider session parameters from a cart and creates the
// hosted session. No retry is attempted on provider failure; retrying is the
// caller's responsibility.
type Service struct {
	Sessions         payment.SessionCreator
	DefaultCurrency  string
	AllowedCountries []string
	FrontendURL      string
	Validate         *validator.Validate
}

// MinorUnits converts a major-unit price to the provider's integer minor
// units, rounding half-up. The epsilon compensates for binary float
// representation: 34.955*100 evaluates to 3495.4999…, which must still land
// on 3496. Truncation would systematically undercharge.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price*100 + 1e-6))
}

// Create validates the request and opens a hosted checkout session.
func (s *Service) Create(ctx context.Context, req Request) (Session, error) {
	if s == nil || s.Sessions == nil {
		return Session{}, errors.New("checkout service not configured")
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(req); err != nil {
			return Session{}, common.NewAppError("BAD_REQUEST", "invalid checkout request", http.StatusBadRequest, err)
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(s.successURL(req)),
		CancelURL:          stripe.String(s.cancelURL(req)),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(s.AllowedCountries),
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, item := range req.Items {
		params.LineItems = append(params.LineItems, s.lineItem(item))
	}

	created, err := s.Sessions.CreateSession(ctx, params)
	if err != nil {
		return Session{}, common.NewAppError("PROVIDER_ERROR", err.Error(), http.StatusInternalServerError, err)
	}
	return Session{ID: created.ID, URL: created.URL}, nil
}

func (s *Service) lineItem(item Item) *stripe.CheckoutSessionLineItemParams {
	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	currency := strings.ToLower(strings.TrimSpace(item.Currency))
	if currency == "" {
		currency = s.DefaultCurrency
	}
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(item.Name),
		// The variant travels through product metadata so it survives to the
		// webhook stage.
		Metadata: map[string]string{"variant": item.Variant},
	}
	if item.Description != "" {
		product.Description = stripe.String(item.Description)
	}
	if len(item.Images) > 0 {
		product.Images = stripe.StringSlice(item.Images)
	}
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(quantity),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripe.String(currency),
			UnitAmount:  stripe.Int64(MinorUnits(item.Price)),
			ProductData: product,
		},
	}
}

func (s *Service) successURL(req Request) string {
	if req.SuccessURL != "" {
		return req.SuccessURL
	}
	return s.FrontendURL + "/success?session_id={CHECKOUT_SESSION_ID}"
}

func (s *Service) cancelURL(req Request) string {
	if req.CancelURL != "" {
		return req.CancelURL
	}
	return s.FrontendURL + "/cancel"
}
