package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/atelier-noir/checkout-relay/internal/ratelimit"
)

func hit(t *testing.T, handler http.Handler, addr string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", nil)
	req.RemoteAddr = addr
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr.Code
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareLimitsPerClient(t *testing.T) {
	t.Parallel()

	mw, err := ratelimit.Middleware(nil, 2, time.Minute)
	require.NoError(t, err)
	handler := mw(okHandler())

	require.Equal(t, http.StatusOK, hit(t, handler, "10.0.0.1:1111"))
	require.Equal(t, http.StatusOK, hit(t, handler, "10.0.0.1:1111"))
	require.Equal(t, http.StatusTooManyRequests, hit(t, handler, "10.0.0.1:1111"))

	// A different client gets its own budget.
	require.Equal(t, http.StatusOK, hit(t, handler, "10.0.0.2:2222"))
}

func TestMiddlewareSharesStateViaRedis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mw, err := ratelimit.Middleware(rdb, 1, time.Minute)
	require.NoError(t, err)

	// Two middleware instances backed by the same store act as one limiter.
	first := mw(okHandler())
	mw2, err := ratelimit.Middleware(rdb, 1, time.Minute)
	require.NoError(t, err)
	second := mw2(okHandler())

	require.Equal(t, http.StatusOK, hit(t, first, "10.0.0.3:3333"))
	require.Equal(t, http.StatusTooManyRequests, hit(t, second, "10.0.0.3:3333"))
}
