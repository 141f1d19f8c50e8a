// Package order builds the canonical order representation forwarded to the
// supplier fulfillment system from a completed Stripe checkout session.
package order

import (
	"time"

	stripe "github.com/stripe/stripe-go/v80"
)

// Address is the shipping address of a completed order. Fields default to
// empty strings when the session carries no shipping details.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Product is a normalized order line item. PricePerUnit is expressed in
// major currency units.
type Product struct {
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	Variant      string  `json:"variant"`
	Quantity     int64   `json:"quantity"`
	PricePerUnit float64 `json:"pricePerUnit"`
	Currency     string  `json:"currency"`
}

// Order is the normalized order forwarded downstream. It has no lifecycle of
// its own: it is built once per completed-session event and either forwarded
// or dropped.
type Order struct {
	OrderID         string    `json:"orderId"`
	CustomerName    string    `json:"customerName"`
	CustomerEmail   string    `json:"customerEmail"`
	ShippingAddress Address   `json:"shippingAddress"`
	Products        []Product `json:"products"`
	TotalAmount     float64   `json:"totalAmount"`
	Currency        string    `json:"currency"`
	PaymentStatus   string    `json:"paymentStatus"`
	Timestamp       string    `json:"timestamp"`
}

// FromSession normalizes an expanded checkout session. Stripe transmits all
// monetary amounts as integers in minor currency units; every monetary field
// here is that value divided by 100, never the raw integer.
func FromSession(s *stripe.CheckoutSession, now time.Time) Order {
	o := Order{
		OrderID:       s.ID,
		Currency:      currencyOrDefault(string(s.Currency)),
		TotalAmount:   toMajorUnits(s.AmountTotal),
		PaymentStatus: string(s.PaymentStatus),
		Timestamp:     now.UTC().Format(time.RFC3339),
		Products:      []Product{},
	}
	if s.CustomerDetails != nil {
		o.CustomerName = s.CustomerDetails.Name
		o.CustomerEmail = s.CustomerDetails.Email
	}
	if s.ShippingDetails != nil && s.ShippingDetails.Address != nil {
		addr := s.ShippingDetails.Address
		o.ShippingAddress = Address{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	if s.LineItems != nil {
		for _, item := range s.LineItems.Data {
			if item == nil {
				continue
			}
			o.Products = append(o.Products, normalizeLineItem(item))
		}
	}
	return o
}

func normalizeLineItem(item *stripe.LineItem) Product {
	p := Product{
		ProductName: item.Description,
		Quantity:    item.Quantity,
		Currency:    "usd",
	}
	if p.Quantity <= 0 {
		p.Quantity = 1
	}
	if item.Price != nil {
		p.PricePerUnit = toMajorUnits(item.Price.UnitAmount)
		p.Currency = currencyOrDefault(string(item.Price.Currency))
		if item.Price.Product != nil {
			product := item.Price.Product
			p.ProductID = product.ID
			if product.Name != "" {
				p.ProductName = product.Name
			}
			if product.Metadata != nil {
				p.Variant = product.Metadata["variant"]
			}
		}
	}
	return p
}

func toMajorUnits(minor int64) float64 {
	return float64(minor) / 100
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return "usd"
	}
	return currency
}
