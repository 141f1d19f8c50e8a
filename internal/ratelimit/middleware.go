// Package ratelimit wires ulule/limiter into chi-compatible middleware.
package ratelimit

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Middleware returns a rate-limiting middleware allowing max requests per
// window, keyed by client IP. With a redis client the limit is shared across
// instances; without one it falls back to an in-memory store.
func Middleware(rdb *redis.Client, max int, window time.Duration) (func(http.Handler) http.Handler, error) {
	rate := limiter.Rate{Period: window, Limit: int64(max)}

	var store limiter.Store
	if rdb != nil {
		s, err := redisstore.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "ratelimit"})
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = memorystore.NewStore()
	}

	mw := mhttp.NewMiddleware(limiter.New(store, rate, limiter.WithTrustForwardHeader(true)))
	return mw.Handler, nil
}
