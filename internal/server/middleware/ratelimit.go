package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/gantrydb/gantry/internal/model"
)

// LoginRateLimit returns a per-IP limiter for the credential-exchange
// endpoints. It sits on top of the gate's per-identity limiter: login
// requests carry no identity yet, and a tighter IP ceiling slows down
// password and key brute-forcing. Rejections use the same JSON envelope
// as the gate's 429s instead of httprate's plain-text default.
func LoginRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(requestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			retryAfter := 60
			if v, err := strconv.Atoi(w.Header().Get("Retry-After")); err == nil && v > 0 {
				retryAfter = v
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, model.RateLimitResponse{
				Detail:     "Rate limit exceeded. Please try again later.",
				RetryAfter: retryAfter,
			})
		}))
}
