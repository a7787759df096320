package middleware

import (
	"net/http"

	"github.com/phrazzld/taskboard-scheduler/internal/api/shared"
	"golang.org/x/time/rate"
)

// RateLimit allows at most perSecond requests per second with the given
// burst across everything behind it. Rejected requests get 429.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				shared.RespondWithError(w, r, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
