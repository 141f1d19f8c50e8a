package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
// It is constructed once at startup and injected into handlers; nothing
// reads the environment after Load returns.
type Config struct {
	AppEnv             string
	Port               string
	StripeSecretKey    string
	StripeWebhookKey   string
	SupplierWebhookURL string
	SupplierAuthToken  string
	FrontendURL        string
	CORSAllowedOrigins []string
	DefaultCurrency    string
	AllowedCountries   []string
	RedisURL           string

	OutboundTimeout    time.Duration
	WebhookReplayTTL   time.Duration
	ForwardRetry       bool
	ForwardMaxAttempts int
	CheckoutRateMax    int
	CheckoutRateWindow time.Duration
}

// defaultAllowedCountries is the shipping-address collection allow-list
// applied when SHIPPING_ALLOWED_COUNTRIES is not set.
var defaultAllowedCountries = []string{"US", "CA", "GB", "AU", "DE", "FR", "IT", "ES", "NL", "BE"}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "3001"),
		StripeSecretKey:    strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripeWebhookKey:   strings.TrimSpace(k.String("STRIPE_WEBHOOK_SECRET")),
		SupplierWebhookURL: strings.TrimSpace(k.String("SUPPLIER_WEBHOOK_URL")),
		SupplierAuthToken:  strings.TrimSpace(k.String("SUPPLIER_AUTH_TOKEN")),
		FrontendURL:        strings.TrimRight(valueOrDefault(k.String("FRONTEND_URL"), "http://localhost:5173"), "/"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		DefaultCurrency:    strings.ToLower(valueOrDefault(k.String("DEFAULT_CURRENCY"), "usd")),
		AllowedCountries:   countriesOrDefault(k.String("SHIPPING_ALLOWED_COUNTRIES")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		OutboundTimeout:    parseDuration(k.String("OUTBOUND_TIMEOUT"), "5s"),
		WebhookReplayTTL:   parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		ForwardRetry:       parseBool(k.String("FORWARD_RETRY_ENABLED")),
		ForwardMaxAttempts: parseInt(k.String("FORWARD_MAX_ATTEMPTS"), 6),
		CheckoutRateMax:    parseInt(k.String("CHECKOUT_RATE_MAX"), 30),
		CheckoutRateWindow: parseDuration(k.String("CHECKOUT_RATE_WINDOW"), "1m"),
	}

	if cfg.StripeSecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is required")
	}
	if cfg.StripeWebhookKey == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if cfg.ForwardRetry && cfg.RedisURL == "" {
		return nil, errors.New("FORWARD_RETRY_ENABLED requires REDIS_URL")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "3001"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func countriesOrDefault(value string) []string {
	parts := splitAndTrim(value)
	if len(parts) == 0 {
		return defaultAllowedCountries
	}
	for i, p := range parts {
		parts[i] = strings.ToUpper(p)
	}
	return parts
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(trimmed, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(environ map[string]string) (*Config, error) {
	original := make(map[string]string, len(environ))
	for key := range environ {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, environ[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
