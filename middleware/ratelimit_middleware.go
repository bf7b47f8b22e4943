package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/services/ratelimit"
	"github.com/flakeguard/flakeguard/utils"
)

// retryAfterSeconds is deliberately conservative: tell the client to wait
// the full window rather than computing the exact reopening instant
const retryAfterSeconds = "60"

// RateLimitMiddleware gates inbound requests through the sliding window
// limiter before any provider dispatch happens.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit checks the caller's rate limit key and either forwards the request
// or rejects it with 429. The limiter's headers are copied verbatim onto the
// response either way.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rateLimitKey(r)

		allowed, headers := m.limiter.IsAllowed(key)
		for name, value := range headers {
			w.Header().Set(name, value)
		}

		if !allowed {
			w.Header().Set(ratelimit.HeaderRetryAfter, retryAfterSeconds)
			_ = utils.WriteTooManyRequests(w, "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitKey identifies the caller: the authenticated key hash when
// present, otherwise the remote IP
func rateLimitKey(r *http.Request) string {
	if hash := GetAPIKeyHashFromContext(r.Context()); hash != "" {
		return hash
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
