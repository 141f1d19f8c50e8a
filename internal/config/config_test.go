package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atelier-noir/checkout-relay/internal/config"
)

var baseEnv = map[string]string{
	"STRIPE_SECRET_KEY":          "sk_test_123",
	"STRIPE_WEBHOOK_SECRET":      "whsec_123",
	"APP_ENV":                    "",
	"PORT":                       "",
	"FRONTEND_URL":               "",
	"SUPPLIER_WEBHOOK_URL":       "",
	"SUPPLIER_AUTH_TOKEN":        "",
	"DEFAULT_CURRENCY":           "",
	"SHIPPING_ALLOWED_COUNTRIES": "",
	"REDIS_URL":                  "",
	"FORWARD_RETRY_ENABLED":      "",
	"CHECKOUT_RATE_MAX":          "",
}

func envWith(overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(baseEnv)+len(overrides))
	for k, v := range baseEnv {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(envWith(nil))
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":3001", cfg.HTTPAddr())
	require.Equal(t, "http://localhost:5173", cfg.FrontendURL)
	require.Equal(t, "usd", cfg.DefaultCurrency)
	require.Contains(t, cfg.AllowedCountries, "US")
	require.Contains(t, cfg.AllowedCountries, "GB")
	require.Equal(t, 5*time.Second, cfg.OutboundTimeout)
	require.Equal(t, 24*time.Hour, cfg.WebhookReplayTTL)
	require.False(t, cfg.ForwardRetry)
	require.Equal(t, 30, cfg.CheckoutRateMax)
	require.Equal(t, time.Minute, cfg.CheckoutRateWindow)
}

func TestLoadRequiresStripeKeys(t *testing.T) {
	_, err := config.LoadForTests(envWith(map[string]string{"STRIPE_SECRET_KEY": ""}))
	require.ErrorContains(t, err, "STRIPE_SECRET_KEY")

	_, err = config.LoadForTests(envWith(map[string]string{"STRIPE_WEBHOOK_SECRET": ""}))
	require.ErrorContains(t, err, "STRIPE_WEBHOOK_SECRET")
}

func TestLoadForwardRetryRequiresRedis(t *testing.T) {
	_, err := config.LoadForTests(envWith(map[string]string{"FORWARD_RETRY_ENABLED": "true"}))
	require.ErrorContains(t, err, "REDIS_URL")

	cfg, err := config.LoadForTests(envWith(map[string]string{
		"FORWARD_RETRY_ENABLED": "true",
		"REDIS_URL":             "redis://localhost:6379/0",
	}))
	require.NoError(t, err)
	require.True(t, cfg.ForwardRetry)
}

func TestLoadNormalizesValues(t *testing.T) {
	cfg, err := config.LoadForTests(envWith(map[string]string{
		"FRONTEND_URL":               "https://shop.example.com/",
		"DEFAULT_CURRENCY":           "EUR",
		"SHIPPING_ALLOWED_COUNTRIES": "us, de ,fr",
		"PORT":                       "8080",
	}))
	require.NoError(t, err)

	require.Equal(t, "https://shop.example.com", cfg.FrontendURL, "trailing slash must be stripped")
	require.Equal(t, "eur", cfg.DefaultCurrency)
	require.Equal(t, []string{"US", "DE", "FR"}, cfg.AllowedCountries)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadIgnoresInvalidDurations(t *testing.T) {
	cfg, err := config.LoadForTests(envWith(map[string]string{
		"OUTBOUND_TIMEOUT":   "soon",
		"WEBHOOK_REPLAY_TTL": "2h",
	}))
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.OutboundTimeout)
	require.Equal(t, 2*time.Hour, cfg.WebhookReplayTTL)
}
