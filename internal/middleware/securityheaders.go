package middleware

import (
	"net/http"
)

// SecurityHeaders sets security headers on all responses. The API serves
// JSON plus the occasional markdown download; nothing it returns should be
// rendered, framed or cached by intermediaries.
func SecurityHeaders(enableHSTS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Content-Security-Policy", "default-src 'none'")

			// Responses are session-scoped; shared caches must not hold them
			w.Header().Set("Cache-Control", "no-store")

			// HSTS only over TLS and only when explicitly enabled, so plain
			// HTTP development setups keep working
			if enableHSTS && r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			next.ServeHTTP(w, r)
		})
	}
}
