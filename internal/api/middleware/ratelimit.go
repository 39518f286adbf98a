package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per window. Zero disables limiting.
	RequestLimit int
	// WindowSize is the sliding window length.
	WindowSize time.Duration
	// KeyFunc extracts the limit key. Defaults to the client IP.
	KeyFunc httprate.KeyFunc
}

// RateLimit limits requests per client using a sliding window counter.
// Rejected requests get 429 with a Retry-After header and a JSON error body.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = time.Minute
	}

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	retryAfter := strconv.Itoa(int(cfg.WindowSize.Seconds()))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","message":"Too many requests, try again later"}` + "\n"))
		}),
	)
}
