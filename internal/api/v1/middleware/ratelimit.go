package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/marginote/marginote/internal/config"
	"github.com/marginote/marginote/pkg/httpext"
	"github.com/marginote/marginote/pkg/ratelimit"
)

// RateLimit applies the configured sliding-window limit for a route class.
func RateLimit(cfg config.RateLimitConfig, class string) func(http.Handler) http.Handler {
	limiter := ratelimit.NewLimiter(cfg.Window, cfg.MaxHits)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			// Use X-Forwarded-For if behind a proxy, otherwise remote address.
			ip := r.Header.Get("X-Forwarded-For")
			if ip == "" {
				ip = r.RemoteAddr
			}

			if !limiter.Allow(ip) {
				log.Warn().
					Str("class", class).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")
				httpext.JsonError(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
