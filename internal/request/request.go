package request

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	sessionIDContextKey contextKey = "session_id"
	premiumContextKey   contextKey = "premium"
)

// SessionIDContextKey returns the context key used for the session ID.
// Exposed for tests that inject non-string values.
func SessionIDContextKey() contextKey { return sessionIDContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithSessionID returns a context with the session ID attached.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}

// SessionIDFromContext returns the session ID from the request context, or "" if missing.
func SessionIDFromContext(r *http.Request) string {
	id, _ := r.Context().Value(sessionIDContextKey).(string)
	return id
}

// WithPremium returns a context with the premium entitlement flag attached.
func WithPremium(ctx context.Context, premium bool) context.Context {
	return context.WithValue(ctx, premiumContextKey, premium)
}

// IsPremium reports whether the request carries a verified premium entitlement.
func IsPremium(r *http.Request) bool {
	premium, _ := r.Context().Value(premiumContextKey).(bool)
	return premium
}
