package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atelier-noir/checkout-relay/internal/config"
	"github.com/atelier-noir/checkout-relay/internal/fulfill"
	"github.com/atelier-noir/checkout-relay/internal/obs"
	"github.com/atelier-noir/checkout-relay/internal/resilience"
)

// The worker drains the forward queue so supplier outages never block the
// webhook path. It only runs when FORWARD_RETRY_ENABLED is set on the API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()

	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required for the forward worker")
	}
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "relay"), nil)

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	forwarder := &fulfill.Forwarder{
		URL:       cfg.SupplierWebhookURL,
		AuthToken: cfg.SupplierAuthToken,
		HTTP: &resilience.HTTPClient{
			Client:      fulfill.HTTPClient(cfg.OutboundTimeout),
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("supplier").WithLogger(logger),
			MaxAttempts: 1,
		},
		Mode: "queue",
		Log:  logger,
	}
	worker := fulfill.Worker{Forwarder: forwarder, Log: logger}

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 5),
		Queues:      map[string]int{"default": 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(fulfill.TypeOrderForward, worker.HandleForwardTask)

	logger.Info().Bool("supplier_configured", cfg.SupplierWebhookURL != "").Msg("forward worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker exited unexpectedly")
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
