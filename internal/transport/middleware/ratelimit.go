package middleware

import (
	"net/http"
	"time"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/transport"
	"github.com/go-chi/httprate"
)

// RateLimitByIP caps requests per client address over window. A zero limit
// disables it.
func RateLimitByIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			transport.WriteAppError(w, r, internal.ErrTooManyRequests)
		}),
	)
}
