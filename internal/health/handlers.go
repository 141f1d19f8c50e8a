package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker represents optional dependencies that can be probed for readiness.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	RedisTimeout time.Duration
	Now          func() time.Time
}

// Health implements the storefront contract: 200 {"status":"ok","timestamp":...}.
func (h Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes. Redis is an optional
// dependency; when it is not configured the service is still ready.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if h.Checker != nil {
		redisStatus = "ok"
		if err := h.Checker.PingRedis(r.Context(), h.redisTimeout()); err != nil {
			redisStatus = err.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if redisStatus != "ok" && redisStatus != "disabled" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"redis": redisStatus})
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}

func (h Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
