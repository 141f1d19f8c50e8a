package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	validator "github.com/go-playground/validator/v10"
	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stretchr/testify/require"

	"github.com/atelier-noir/checkout-relay/internal/checkout"
	"github.com/atelier-noir/checkout-relay/internal/common"
)

type fakeSessionCreator struct {
	params  *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
	calls   int
}

func (f *fakeSessionCreator) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	if f.session != nil {
		return f.session, nil
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func newService(creator *fakeSessionCreator) *checkout.Service {
	return &checkout.Service{
		Sessions:         creator,
		DefaultCurrency:  "usd",
		AllowedCountries: []string{"US", "GB"},
		FrontendURL:      "http://localhost:5173",
		Validate:         validator.New(),
	}
}

func TestMinorUnits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		price float64
		want  int64
	}{
		{0, 0},
		{10, 1000},
		{29.99, 2999},
		{34.955, 3496},
		{0.01, 1},
		{19.995, 2000},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, checkout.MinorUnits(tc.price), "price %v", tc.price)
	}
}

func TestCreateBuildsSessionParams(t *testing.T) {
	t.Parallel()

	creator := &fakeSessionCreator{}
	svc := newService(creator)

	session, err := svc.Create(context.Background(), checkout.Request{
		Items: []checkout.Item{
			{
				Name:        "Linen Shirt",
				Description: "Breathable summer shirt",
				Price:       34.955,
				Quantity:    2,
				Currency:    "EUR",
				Variant:     "navy / M",
				Images:      []string{"https://cdn.example.com/shirt.jpg"},
			},
			{Name: "Gift Wrap", Price: 4.95},
		},
		CustomerEmail: "ada@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", session.ID)
	require.Equal(t, "https://checkout.stripe.test/cs_test_1", session.URL)

	params := creator.params
	require.NotNil(t, params)
	require.Equal(t, string(stripe.CheckoutSessionModePayment), *params.Mode)
	require.Equal(t, "card", *params.PaymentMethodTypes[0])
	require.Equal(t, "ada@example.com", *params.CustomerEmail)
	require.Equal(t, "http://localhost:5173/success?session_id={CHECKOUT_SESSION_ID}", *params.SuccessURL)
	require.Equal(t, "http://localhost:5173/cancel", *params.CancelURL)

	require.NotNil(t, params.ShippingAddressCollection)
	require.Len(t, params.ShippingAddressCollection.AllowedCountries, 2)
	require.Equal(t, "US", *params.ShippingAddressCollection.AllowedCountries[0])

	require.Len(t, params.LineItems, 2)
	first := params.LineItems[0]
	require.Equal(t, int64(2), *first.Quantity)
	require.Equal(t, "eur", *first.PriceData.Currency)
	require.Equal(t, int64(3496), *first.PriceData.UnitAmount)
	require.Equal(t, "Linen Shirt", *first.PriceData.ProductData.Name)
	require.Equal(t, "Breathable summer shirt", *first.PriceData.ProductData.Description)
	require.Equal(t, "navy / M", first.PriceData.ProductData.Metadata["variant"])

	// Quantity and currency fall back when omitted; variant metadata is always
	// present so the webhook stage sees a stable shape.
	second := params.LineItems[1]
	require.Equal(t, int64(1), *second.Quantity)
	require.Equal(t, "usd", *second.PriceData.Currency)
	require.Equal(t, int64(495), *second.PriceData.UnitAmount)
	require.Equal(t, "", second.PriceData.ProductData.Metadata["variant"])
	require.Nil(t, second.PriceData.ProductData.Description)
}

func TestCreateHonorsExplicitRedirectURLs(t *testing.T) {
	t.Parallel()

	creator := &fakeSessionCreator{}
	svc := newService(creator)

	_, err := svc.Create(context.Background(), checkout.Request{
		Items:      []checkout.Item{{Name: "Candle", Price: 12}},
		SuccessURL: "https://shop.example.com/done",
		CancelURL:  "https://shop.example.com/back",
	})
	require.NoError(t, err)
	require.Equal(t, "https://shop.example.com/done", *creator.params.SuccessURL)
	require.Equal(t, "https://shop.example.com/back", *creator.params.CancelURL)
}

func TestCreateRejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	creator := &fakeSessionCreator{}
	svc := newService(creator)

	cases := []checkout.Request{
		{},
		{Items: []checkout.Item{}},
		{Items: []checkout.Item{{Name: "", Price: 5}}},
		{Items: []checkout.Item{{Name: "Candle", Price: -1}}},
		{Items: []checkout.Item{{Name: "Candle", Price: 5}}, CustomerEmail: "not-an-email"},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	}
	require.Zero(t, creator.calls, "provider must not be called for invalid input")
}

func TestCreateWrapsProviderErrors(t *testing.T) {
	t.Parallel()

	creator := &fakeSessionCreator{err: errors.New("stripe unavailable")}
	svc := newService(creator)

	_, err := svc.Create(context.Background(), checkout.Request{
		Items: []checkout.Item{{Name: "Candle", Price: 12}},
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	require.Equal(t, "PROVIDER_ERROR", appErr.Code)
}
